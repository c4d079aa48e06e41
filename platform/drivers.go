package platform

import (
	"context"

	"github.com/GoCodeAlone/appsyncctl/config"
)

// APIDriver reconciles the GraphQL API itself.
type APIDriver interface {
	// Reconcile resolves the API by id, then by name, else creates it, and
	// updates it when the compared fields drifted.
	Reconcile(ctx context.Context, obs Observer, spec *config.Spec, prior *Snapshot) (APIRecord, error)
	// Delete removes the API and everything attached to it.
	Delete(ctx context.Context, obs Observer, apiID string) error
}

// RoleProvisioner supplies the service role assumed by data sources.
type RoleProvisioner interface {
	// Provision returns the role data sources without their own role use,
	// or nil when none is needed.
	Provision(ctx context.Context, obs Observer, spec *config.Spec, prior *RoleRecord) (*RoleRecord, error)
	// Remove deletes a role created by Provision.
	Remove(ctx context.Context, obs Observer, role RoleRecord) error
}

// DataSourceDriver reconciles data sources.
type DataSourceDriver interface {
	Reconcile(ctx context.Context, obs Observer, apiID, region string, desired []config.DataSource) ([]DataSourceRecord, error)
	RemoveObsolete(ctx context.Context, obs Observer, apiID string, desired []config.DataSource, prior []DataSourceRef) error
	// RemoveRecorded deletes only what prior records.
	RemoveRecorded(ctx context.Context, obs Observer, apiID string, prior []DataSourceRef) error
}

// SchemaDriver applies the schema behind a checksum gate.
type SchemaDriver interface {
	// Apply submits sdl unless its checksum equals priorChecksum and
	// returns the checksum now in effect.
	Apply(ctx context.Context, obs Observer, apiID, sdl, priorChecksum string) (string, error)
}

// ResolverDriver reconciles resolvers.
type ResolverDriver interface {
	Reconcile(ctx context.Context, obs Observer, apiID string, desired []config.Resolver, sources []DataSourceRecord) ([]ResolverRecord, error)
	RemoveObsolete(ctx context.Context, obs Observer, apiID string, desired []config.Resolver, prior []ResolverRef) error
	RemoveRecorded(ctx context.Context, obs Observer, apiID string, prior []ResolverRef) error
}

// FunctionDriver reconciles pipeline functions.
type FunctionDriver interface {
	Reconcile(ctx context.Context, obs Observer, apiID string, desired []config.Function) ([]FunctionRecord, error)
	RemoveObsolete(ctx context.Context, obs Observer, apiID string, desired []config.Function, prior []FunctionRef) error
	RemoveRecorded(ctx context.Context, obs Observer, apiID string, prior []FunctionRef) error
}

// APIKeyDriver reconciles API keys.
type APIKeyDriver interface {
	Reconcile(ctx context.Context, obs Observer, apiID string, desired []config.APIKey, prior []APIKeyRef) ([]APIKeyRecord, error)
	// RemoveObsolete deletes every key not in keep.
	RemoveObsolete(ctx context.Context, obs Observer, apiID string, keep []APIKeyRecord, prior []APIKeyRef) error
	RemoveRecorded(ctx context.Context, obs Observer, apiID string, prior []APIKeyRef) error
}

// Drivers groups one driver per kind.
type Drivers struct {
	API         APIDriver
	Role        RoleProvisioner
	DataSources DataSourceDriver
	Schema      SchemaDriver
	Resolvers   ResolverDriver
	Functions   FunctionDriver
	APIKeys     APIKeyDriver
}

// Package platform holds the provider-neutral core of the reconciliation
// engine: resource kinds and actions, the diff classifier, paginated
// enumeration, bounded concurrent apply, the prior-state snapshot and its
// store contract, run observers and the pipeline orchestrator that sequences
// the per-kind drivers.
package platform

import "time"

// Kind identifies one managed resource kind.
type Kind string

const (
	KindAPI        Kind = "graphql_api"
	KindRole       Kind = "service_role"
	KindDataSource Kind = "data_source"
	KindSchema     Kind = "schema"
	KindResolver   Kind = "resolver"
	KindFunction   Kind = "function"
	KindAPIKey     Kind = "api_key"
)

// Action is the reconciliation outcome for one (kind, match key) pair.
type Action string

const (
	// ActionCreate means no deployed item matched the desired one.
	ActionCreate Action = "create"

	// ActionUpdate means a match was found but compared fields differ.
	ActionUpdate Action = "update"

	// ActionIgnore means the deployed item already matches.
	ActionIgnore Action = "ignore"

	// ActionDelete means a deployed item is no longer declared.
	ActionDelete Action = "delete"
)

// Mutates reports whether the action issues a remote write.
func (a Action) Mutates() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageAPI              Stage = "api"
	StageRole             Stage = "role"
	StageDataSources      Stage = "data_sources"
	StageSchema           Stage = "schema"
	StageResolvers        Stage = "resolvers"
	StageFunctions        Stage = "functions"
	StageAPIKeys          Stage = "api_keys"
	StagePruneResolvers   Stage = "prune_resolvers"
	StagePruneFunctions   Stage = "prune_functions"
	StagePruneDataSources Stage = "prune_data_sources"
	StagePruneAPIKeys     Stage = "prune_api_keys"
	StagePruneRole        Stage = "prune_role"
	StageTeardownAPI      Stage = "teardown_api"
)

// DiffEntry represents a single field difference between desired and
// deployed state.
type DiffEntry struct {
	Path     string `json:"path"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// APIRecord is the post-apply shape of the GraphQL API.
type APIRecord struct {
	ID   string
	ARN  string
	Name string
	URIs map[string]string
	// Owned is true when this tool created the API.
	Owned bool
}

// RoleRecord references the service role used by data sources.
type RoleRecord struct {
	RoleName   string `json:"roleName,omitempty" yaml:"roleName,omitempty"`
	RoleArn    string `json:"roleArn" yaml:"roleArn"`
	PolicyName string `json:"policyName,omitempty" yaml:"policyName,omitempty"`
	// External roles are supplied by configuration and never removed.
	External bool `json:"-" yaml:"-"`
}

// DataSourceRecord is the post-apply shape of one data source.
type DataSourceRecord struct {
	Name           string
	Type           string
	ARN            string
	ServiceRoleArn string
}

// ResolverRecord is the post-apply shape of one resolver.
type ResolverRecord struct {
	Type       string
	Field      string
	DataSource string
	ARN        string
}

// FunctionRecord is the post-apply shape of one pipeline function.
type FunctionRecord struct {
	Name       string
	DataSource string
	ID         string
	ARN        string
}

// APIKeyRecord is the post-apply shape of one API key.
type APIKeyRecord struct {
	Name string
	ID   string
	// Expires is in epoch seconds.
	Expires int64
}

// Result summarises a completed deploy.
type Result struct {
	RunID    string
	API      APIRecord
	Role     *RoleRecord
	APIKeys  []APIKeyRecord
	Actions  map[Kind]map[Action]int
	Duration time.Duration
}

// Changed reports whether the run issued any remote write.
func (r *Result) Changed() bool {
	for _, byAction := range r.Actions {
		for a, n := range byAction {
			if a.Mutates() && n > 0 {
				return true
			}
		}
	}
	return false
}

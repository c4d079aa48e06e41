package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StateStore persists the prior-state snapshot between runs. Snapshots are
// partitioned by stack name, which is the API name.
type StateStore interface {
	// Load returns the stored snapshot, or an empty snapshot when nothing
	// has been saved for the stack yet.
	Load(ctx context.Context, stack string) (*Snapshot, error)

	// Save overwrites the stored snapshot.
	Save(ctx context.Context, stack string, snap *Snapshot) error

	// Delete forgets the stack. Deleting a missing stack is not an error.
	Delete(ctx context.Context, stack string) error
}

// Snapshot is the identifying projection of everything a successful run
// deployed. It carries keys and service-assigned ids, never full bodies.
type Snapshot struct {
	APIID          string            `json:"apiId,omitempty" yaml:"apiId,omitempty"`
	ARN            string            `json:"arn,omitempty" yaml:"arn,omitempty"`
	URIs           map[string]string `json:"uris,omitempty" yaml:"uris,omitempty"`
	IsAPICreator   bool              `json:"isApiCreator" yaml:"isApiCreator"`
	Region         string            `json:"region,omitempty" yaml:"region,omitempty"`
	SchemaChecksum string            `json:"schemaChecksum,omitempty" yaml:"schemaChecksum,omitempty"`
	DataSources    []DataSourceRef   `json:"dataSources" yaml:"dataSources"`
	Resolvers      []ResolverRef     `json:"resolvers" yaml:"resolvers"`
	Functions      []FunctionRef     `json:"functions" yaml:"functions"`
	APIKeys        []APIKeyRef       `json:"apiKeys" yaml:"apiKeys"`
	Role           *RoleRecord       `json:"role,omitempty" yaml:"role,omitempty"`
	RunID          string            `json:"runId,omitempty" yaml:"runId,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// DataSourceRef identifies a deployed data source.
type DataSourceRef struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// ResolverRef identifies a deployed resolver.
type ResolverRef struct {
	Type  string `json:"type" yaml:"type"`
	Field string `json:"field" yaml:"field"`
}

// FunctionRef identifies a deployed function. The service cannot look a
// function up by name, so the id is kept here.
type FunctionRef struct {
	Name       string `json:"name" yaml:"name"`
	DataSource string `json:"dataSource" yaml:"dataSource"`
	FunctionID string `json:"functionId" yaml:"functionId"`
}

// APIKeyRef identifies a deployed API key.
type APIKeyRef struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// Empty reports whether the snapshot records no deployment.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.APIID == "" && len(s.DataSources) == 0 && len(s.Resolvers) == 0 &&
		len(s.Functions) == 0 && len(s.APIKeys) == 0 && s.Role == nil)
}

// APIKeyID returns the recorded id of the named key.
func (s *Snapshot) APIKeyID(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, k := range s.APIKeys {
		if k.Name == name {
			return k.ID, true
		}
	}
	return "", false
}

// EncodeSnapshot serialises a snapshot for blob-style stores.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot. Empty input
// yields an empty snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

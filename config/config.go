// Package config defines the declared configuration of one AppSync GraphQL API
// and the helpers that load, default and validate it.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Authentication types accepted for the primary and additional providers.
const (
	AuthAPIKey        = "API_KEY"
	AuthIAM           = "AWS_IAM"
	AuthUserPools     = "AMAZON_COGNITO_USER_POOLS"
	AuthOpenIDConnect = "OPENID_CONNECT"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultRegion             = "us-east-1"
	DefaultAuthenticationType = AuthAPIKey
	DefaultSchemaFile         = "schema.graphql"
	DefaultFunctionVersion    = "2018-05-29"
	DefaultConcurrency        = 4
	DefaultSchemaPollInterval = time.Second
)

// API key matching modes.
const (
	// MatchByID correlates declared keys with deployed keys through the id
	// recorded in state. Keys without a recorded id are created.
	MatchByID = "id"
	// MatchByName correlates declared keys with deployed keys whose
	// description equals the key's effective description.
	MatchByName = "name"
)

// Default template policies for resolvers bound to AWS_LAMBDA data sources.
const (
	// TemplatesAlways substitutes the passthrough pair on create and update.
	TemplatesAlways = "always"
	// TemplatesOnCreate substitutes the passthrough pair on create only; on
	// update the deployed templates are left as they are.
	TemplatesOnCreate = "create"
)

// Spec is the full declared configuration for one GraphQL API.
type Spec struct {
	// Name identifies the API and keys the stored state.
	Name string `yaml:"name" validate:"required"`
	// APIID adopts an existing API instead of resolving one by name.
	APIID     string `yaml:"apiId,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccountID string `yaml:"accountId,omitempty" validate:"omitempty,numeric,len=12"`

	AuthenticationType                string          `yaml:"authenticationType,omitempty" validate:"omitempty,oneof=API_KEY AWS_IAM AMAZON_COGNITO_USER_POOLS OPENID_CONNECT"`
	UserPoolConfig                    *UserPoolConfig `yaml:"userPoolConfig,omitempty"`
	OpenIDConnectConfig               *OIDCConfig     `yaml:"openIdConnectConfig,omitempty"`
	AdditionalAuthenticationProviders []AuthProvider  `yaml:"additionalAuthenticationProviders,omitempty" validate:"dive"`
	LogConfig                         *LogConfig      `yaml:"logConfig,omitempty"`

	// ServiceRoleArn is an externally managed role used by every data
	// source that does not declare its own. When set no role is provisioned.
	ServiceRoleArn string `yaml:"serviceRoleArn,omitempty"`

	// Schema is inline SDL or a path to a schema file.
	Schema      string       `yaml:"schema,omitempty"`
	DataSources []DataSource `yaml:"dataSources,omitempty" validate:"dive"`
	Resolvers   []Resolver   `yaml:"resolvers,omitempty" validate:"dive"`
	Functions   []Function   `yaml:"functions,omitempty" validate:"dive"`
	APIKeys     []APIKey     `yaml:"apiKeys,omitempty" validate:"dive"`

	// BasePath resolves relative schema and template file references.
	BasePath string `yaml:"basePath,omitempty"`

	Options Options `yaml:"options,omitempty"`
}

// Options tune how the engine applies the configuration.
type Options struct {
	APIKeyMatching     string        `yaml:"apiKeyMatching,omitempty" validate:"omitempty,oneof=id name"`
	DefaultTemplates   string        `yaml:"defaultTemplates,omitempty" validate:"omitempty,oneof=always create"`
	Concurrency        int           `yaml:"concurrency,omitempty" validate:"gte=0,lte=64"`
	RequestsPerSecond  float64       `yaml:"requestsPerSecond,omitempty" validate:"gte=0"`
	SchemaPollInterval time.Duration `yaml:"schemaPollInterval,omitempty" validate:"gte=0"`
}

// UserPoolConfig configures AMAZON_COGNITO_USER_POOLS authorization.
type UserPoolConfig struct {
	UserPoolID       string  `yaml:"userPoolId" validate:"required"`
	AwsRegion        string  `yaml:"awsRegion,omitempty"`
	DefaultAction    string  `yaml:"defaultAction,omitempty" validate:"omitempty,oneof=ALLOW DENY"`
	AppIDClientRegex *string `yaml:"appIdClientRegex,omitempty"`
}

// OIDCConfig configures OPENID_CONNECT authorization.
type OIDCConfig struct {
	Issuer   string  `yaml:"issuer" validate:"required,url"`
	ClientID *string `yaml:"clientId,omitempty"`
	IatTTL   int64   `yaml:"iatTTL,omitempty" validate:"gte=0"`
	AuthTTL  int64   `yaml:"authTTL,omitempty" validate:"gte=0"`
}

// AuthProvider is an additional authorization mode of the API.
type AuthProvider struct {
	AuthenticationType  string          `yaml:"authenticationType" validate:"required,oneof=API_KEY AWS_IAM AMAZON_COGNITO_USER_POOLS OPENID_CONNECT"`
	UserPoolConfig      *UserPoolConfig `yaml:"userPoolConfig,omitempty"`
	OpenIDConnectConfig *OIDCConfig     `yaml:"openIdConnectConfig,omitempty"`
}

// LogConfig enables CloudWatch field logging for the API.
type LogConfig struct {
	CloudWatchLogsRoleArn string `yaml:"cloudWatchLogsRoleArn" validate:"required"`
	FieldLogLevel         string `yaml:"fieldLogLevel" validate:"required,oneof=NONE ERROR ALL"`
}

// Resolver attaches a data source or a pipeline of functions to a field.
type Resolver struct {
	Type       string `yaml:"type" validate:"required"`
	Field      string `yaml:"field" validate:"required"`
	DataSource string `yaml:"dataSource,omitempty"`
	// Kind is UNIT (default) or PIPELINE.
	Kind string `yaml:"kind,omitempty" validate:"omitempty,oneof=UNIT PIPELINE"`
	// Functions lists function ids executed by a PIPELINE resolver.
	Functions []string `yaml:"functions,omitempty"`
	// Request and Response are inline VTL or paths to template files.
	Request  string `yaml:"request,omitempty"`
	Response string `yaml:"response,omitempty"`
}

// Key returns the resolver's (type, field) match key.
func (r Resolver) Key() string { return r.Type + "." + r.Field }

// IsPipeline reports whether the resolver runs a function pipeline.
func (r Resolver) IsPipeline() bool { return r.Kind == "PIPELINE" }

// Function is a reusable pipeline function bound to one data source.
type Function struct {
	Name            string  `yaml:"name" validate:"required"`
	DataSource      string  `yaml:"dataSource" validate:"required"`
	Description     *string `yaml:"description,omitempty"`
	FunctionVersion string  `yaml:"functionVersion,omitempty"`
	Request         string  `yaml:"request" validate:"required"`
	Response        string  `yaml:"response" validate:"required"`
}

// Key returns the function's (name, dataSource) match key.
func (f Function) Key() string { return f.Name + "/" + f.DataSource }

// APIKey is an access key of an API_KEY authorized API. A plain scalar in
// YAML is read as the key name.
type APIKey struct {
	Name        string  `yaml:"name" validate:"required"`
	Description *string `yaml:"description,omitempty"`
	// Expires is epoch seconds or epoch milliseconds; zero leaves the
	// service default.
	Expires int64 `yaml:"expires,omitempty" validate:"gte=0"`
}

// UnmarshalYAML accepts either a mapping or a bare key name.
func (k *APIKey) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Name = node.Value
		return nil
	}
	type plain APIKey
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*k = APIKey(p)
	return nil
}

// LoadFromFile reads, parses and defaults a configuration file. Relative
// file references resolve against the file's directory unless basePath is set.
func LoadFromFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if spec.BasePath == "" {
		spec.BasePath = filepath.Dir(path)
	} else if !filepath.IsAbs(spec.BasePath) {
		spec.BasePath = filepath.Join(filepath.Dir(path), spec.BasePath)
	}
	return spec, nil
}

// Parse decodes YAML into a Spec and applies defaults. Unknown top-level
// fields are rejected.
func Parse(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	spec.ApplyDefaults()
	return &spec, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func (s *Spec) ApplyDefaults() {
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	if s.AuthenticationType == "" {
		s.AuthenticationType = DefaultAuthenticationType
	}
	if s.Schema == "" {
		s.Schema = DefaultSchemaFile
	}
	if s.Options.APIKeyMatching == "" {
		s.Options.APIKeyMatching = MatchByID
	}
	if s.Options.DefaultTemplates == "" {
		s.Options.DefaultTemplates = TemplatesAlways
	}
	if s.Options.Concurrency == 0 {
		s.Options.Concurrency = DefaultConcurrency
	}
	if s.Options.SchemaPollInterval == 0 {
		s.Options.SchemaPollInterval = DefaultSchemaPollInterval
	}
	for i := range s.Functions {
		if s.Functions[i].FunctionVersion == "" {
			s.Functions[i].FunctionVersion = DefaultFunctionVersion
		}
	}
	for i := range s.Resolvers {
		if s.Resolvers[i].Kind == "" {
			s.Resolvers[i].Kind = "UNIT"
		}
	}
}

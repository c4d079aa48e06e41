package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Data source types.
const (
	DataSourceLambda        = "AWS_LAMBDA"
	DataSourceDynamoDB      = "AMAZON_DYNAMODB"
	DataSourceElasticsearch = "AMAZON_ELASTICSEARCH"
	DataSourceHTTP          = "HTTP"
	DataSourceRelationalDB  = "RELATIONAL_DATABASE"
	DataSourceNone          = "NONE"
)

// DataSource is a declared data source. Config holds the type-specific
// settings; Settings decodes it into the typed form.
type DataSource struct {
	Name           string         `yaml:"name" validate:"required"`
	Type           string         `yaml:"type" validate:"required,oneof=AWS_LAMBDA AMAZON_DYNAMODB AMAZON_ELASTICSEARCH HTTP RELATIONAL_DATABASE NONE"`
	Description    *string        `yaml:"description,omitempty"`
	ServiceRoleArn string         `yaml:"serviceRoleArn,omitempty"`
	Config         map[string]any `yaml:"config,omitempty"`
}

// Key returns the data source's (name, type) match key.
func (d DataSource) Key() string { return d.Name + "/" + d.Type }

// NeedsRole reports whether the data source type is called through a
// service role.
func (d DataSource) NeedsRole() bool {
	switch d.Type {
	case DataSourceLambda, DataSourceDynamoDB, DataSourceElasticsearch, DataSourceRelationalDB:
		return true
	}
	return false
}

// WithServiceRole returns a copy of d bound to roleArn unless d already
// declares a role or does not need one.
func (d DataSource) WithServiceRole(roleArn string) DataSource {
	if d.ServiceRoleArn != "" || roleArn == "" || !d.NeedsRole() {
		return d
	}
	d.ServiceRoleArn = roleArn
	return d
}

// LambdaSettings configures an AWS_LAMBDA data source.
type LambdaSettings struct {
	FunctionArn string `yaml:"lambdaFunctionArn"`
	Region      string `yaml:"region,omitempty"`
}

// DynamoDBSettings configures an AMAZON_DYNAMODB data source.
type DynamoDBSettings struct {
	TableName            string `yaml:"tableName"`
	UseCallerCredentials bool   `yaml:"useCallerCredentials,omitempty"`
	Region               string `yaml:"region,omitempty"`
	AccountID            string `yaml:"accountId,omitempty"`
}

// ElasticsearchSettings configures an AMAZON_ELASTICSEARCH data source.
type ElasticsearchSettings struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region,omitempty"`
	AccountID string `yaml:"accountId,omitempty"`
}

// HTTPSettings configures an HTTP data source.
type HTTPSettings struct {
	Endpoint string `yaml:"endpoint"`
}

// RelationalDBSettings configures a RELATIONAL_DATABASE data source backed
// by an Aurora Data API endpoint.
type RelationalDBSettings struct {
	DBClusterIdentifier string `yaml:"dbClusterIdentifier"`
	AwsSecretStoreArn   string `yaml:"awsSecretStoreArn"`
	DatabaseName        string `yaml:"databaseName,omitempty"`
	Schema              string `yaml:"schema,omitempty"`
	Region              string `yaml:"region,omitempty"`
	AccountID           string `yaml:"accountId,omitempty"`
}

// Settings is the decoded form of DataSource.Config. Exactly one field is
// set, selected by the data source type; NONE sets none.
type Settings struct {
	Lambda        *LambdaSettings
	DynamoDB      *DynamoDBSettings
	Elasticsearch *ElasticsearchSettings
	HTTP          *HTTPSettings
	RelationalDB  *RelationalDBSettings
}

// Region returns the per-source region override, if any.
func (s Settings) Region() string {
	switch {
	case s.Lambda != nil:
		return s.Lambda.Region
	case s.DynamoDB != nil:
		return s.DynamoDB.Region
	case s.Elasticsearch != nil:
		return s.Elasticsearch.Region
	case s.RelationalDB != nil:
		return s.RelationalDB.Region
	}
	return ""
}

// AccountID returns the per-source account override, if any.
func (s Settings) AccountID() string {
	switch {
	case s.DynamoDB != nil:
		return s.DynamoDB.AccountID
	case s.Elasticsearch != nil:
		return s.Elasticsearch.AccountID
	case s.RelationalDB != nil:
		return s.RelationalDB.AccountID
	}
	return ""
}

// Settings decodes Config for the data source's type. Unknown keys and
// missing required keys are reported as *FieldError.
func (d DataSource) Settings() (Settings, error) {
	var s Settings
	switch d.Type {
	case DataSourceLambda:
		s.Lambda = &LambdaSettings{}
		if err := d.decode(s.Lambda); err != nil {
			return s, err
		}
		if s.Lambda.FunctionArn == "" {
			return s, d.missing("lambdaFunctionArn")
		}
	case DataSourceDynamoDB:
		s.DynamoDB = &DynamoDBSettings{}
		if err := d.decode(s.DynamoDB); err != nil {
			return s, err
		}
		if s.DynamoDB.TableName == "" {
			return s, d.missing("tableName")
		}
	case DataSourceElasticsearch:
		s.Elasticsearch = &ElasticsearchSettings{}
		if err := d.decode(s.Elasticsearch); err != nil {
			return s, err
		}
		if s.Elasticsearch.Endpoint == "" {
			return s, d.missing("endpoint")
		}
	case DataSourceHTTP:
		s.HTTP = &HTTPSettings{}
		if err := d.decode(s.HTTP); err != nil {
			return s, err
		}
		if s.HTTP.Endpoint == "" {
			return s, d.missing("endpoint")
		}
	case DataSourceRelationalDB:
		s.RelationalDB = &RelationalDBSettings{}
		if err := d.decode(s.RelationalDB); err != nil {
			return s, err
		}
		if s.RelationalDB.DBClusterIdentifier == "" {
			return s, d.missing("dbClusterIdentifier")
		}
		if s.RelationalDB.AwsSecretStoreArn == "" {
			return s, d.missing("awsSecretStoreArn")
		}
	case DataSourceNone:
		if len(d.Config) > 0 {
			return s, &FieldError{Field: d.field(""), Reason: "NONE data sources take no config"}
		}
	default:
		return s, &FieldError{Field: "dataSources." + d.Name + ".type", Reason: fmt.Sprintf("unsupported type %q", d.Type)}
	}
	return s, nil
}

func (d DataSource) decode(out any) error {
	if len(d.Config) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(d.Config)
	if err != nil {
		return &FieldError{Field: d.field(""), Reason: err.Error()}
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return &FieldError{Field: d.field(""), Reason: err.Error()}
	}
	return nil
}

func (d DataSource) missing(key string) error {
	return &FieldError{Field: d.field(key), Reason: "required for " + d.Type}
}

func (d DataSource) field(key string) string {
	f := "dataSources." + d.Name + ".config"
	if key != "" {
		f += "." + key
	}
	return f
}

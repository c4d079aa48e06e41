// Package aws wires the reconciliation engine to Amazon Web Services: SDK
// configuration and credentials, the AppSync, IAM and STS clients behind the
// resource drivers, and the S3 and DynamoDB state stores.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
)

const (
	ProviderName    = "aws"
	ProviderVersion = "0.1.0"
)

// identityClient is the STS surface used for the health check and account
// lookup.
type identityClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSProvider owns the SDK clients for one region and account.
type AWSProvider struct {
	cfg     awsSDKConfig
	appsync *appsync.Client
	iam     *iam.Client
	sts     identityClient
}

// NewProvider loads the SDK config described by opts and creates the
// service clients.
func NewProvider(ctx context.Context, opts ClientOptions) (*AWSProvider, error) {
	cfg, err := LoadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewProviderFromConfig(cfg), nil
}

// NewProviderFromConfig creates the service clients from an existing config.
func NewProviderFromConfig(cfg awsSDKConfig) *AWSProvider {
	return &AWSProvider{
		cfg:     cfg,
		appsync: appsync.NewFromConfig(cfg),
		iam:     iam.NewFromConfig(cfg),
		sts:     sts.NewFromConfig(cfg),
	}
}

func (p *AWSProvider) Name() string    { return ProviderName }
func (p *AWSProvider) Version() string { return ProviderVersion }

// Region returns the region the clients are bound to.
func (p *AWSProvider) Region() string { return p.cfg.Region }

// Config returns the resolved SDK config.
func (p *AWSProvider) Config() awsSDKConfig { return p.cfg }

// Drivers returns the resource drivers tuned by opts.
func (p *AWSProvider) Drivers(opts config.Options) platform.Drivers {
	return NewDrivers(p.appsync, p.iam, p.sts, opts)
}

// S3Store returns a snapshot store in bucket under prefix.
func (p *AWSProvider) S3Store(bucket, prefix string) *S3Store {
	client := s3.NewFromConfig(p.cfg, func(o *s3.Options) {
		// Custom endpoints such as LocalStack only serve path-style URLs.
		o.UsePathStyle = p.cfg.BaseEndpoint != nil
	})
	return NewS3Store(client, bucket, prefix)
}

// DynamoDBStore returns a snapshot store backed by table.
func (p *AWSProvider) DynamoDBStore(table string) *DynamoDBStore {
	return NewDynamoDBStore(dynamodb.NewFromConfig(p.cfg), table)
}

// Healthy verifies that the credentials resolve to an identity.
func (p *AWSProvider) Healthy(ctx context.Context) error {
	out, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("aws: get caller identity: %w", err)
	}
	if out.Account == nil {
		return fmt.Errorf("aws: caller identity has no account")
	}
	return nil
}

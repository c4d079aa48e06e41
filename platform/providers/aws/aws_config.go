package aws

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// awsSDKConfig is an alias for the AWS SDK v2 config type used throughout
// the provider. This allows tests to construct configs with mock credentials.
type awsSDKConfig = awsv2.Config

// DefaultRegion is used when neither the options nor the environment name a
// region.
const DefaultRegion = "us-east-1"

// ClientOptions select the account, region and credentials the clients use.
// Empty fields fall back to the SDK's default chain (environment, shared
// config, instance role).
type ClientOptions struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// AssumeRoleArn, when set, wraps the resolved credentials in an STS
	// assume-role session.
	AssumeRoleArn string
	// SessionName names the assumed-role session; it is trimmed to the
	// 64 characters STS accepts.
	SessionName string

	// Endpoint overrides every service endpoint, e.g. for LocalStack.
	Endpoint string
}

// LoadConfig resolves an SDK config from opts.
func LoadConfig(ctx context.Context, opts ClientOptions) (awsSDKConfig, error) {
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return awsSDKConfig{}, fmt.Errorf("aws: load config: %w", err)
	}
	if opts.Endpoint != "" {
		cfg.BaseEndpoint = awsv2.String(opts.Endpoint)
	}
	if opts.AssumeRoleArn != "" {
		broker := NewAWSCredentialBroker(sts.NewFromConfig(cfg), opts.AssumeRoleArn, opts.SessionName)
		cfg.Credentials = awsv2.NewCredentialsCache(broker)
	}
	return cfg, nil
}

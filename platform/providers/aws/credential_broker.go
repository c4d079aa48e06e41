package aws

import (
	"context"
	"fmt"
	"regexp"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
)

// STSClient defines the STS operations used by the credential broker.
type STSClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// sessionDuration is the lifetime requested for assumed-role sessions.
const sessionDuration = time.Hour

var invalidSessionChars = regexp.MustCompile(`[^\w+=,.@-]`)

// AWSCredentialBroker issues temporary credentials for the deployment role
// through STS AssumeRole. It implements aws.CredentialsProvider and is
// meant to be wrapped in an aws.CredentialsCache.
type AWSCredentialBroker struct {
	stsClient   STSClient
	roleARN     string
	sessionName string
}

// NewAWSCredentialBroker creates a credential broker backed by STS AssumeRole.
func NewAWSCredentialBroker(client STSClient, roleARN, sessionName string) *AWSCredentialBroker {
	return &AWSCredentialBroker{
		stsClient:   client,
		roleARN:     roleARN,
		sessionName: SessionName(sessionName),
	}
}

// Retrieve assumes the role and returns the session credentials.
func (b *AWSCredentialBroker) Retrieve(ctx context.Context) (awsv2.Credentials, error) {
	out, err := b.stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         awsv2.String(b.roleARN),
		RoleSessionName: awsv2.String(b.sessionName),
		DurationSeconds: awsv2.Int32(int32(sessionDuration.Seconds())),
	})
	if err != nil {
		return awsv2.Credentials{}, fmt.Errorf("aws: assume role %q: %w", b.roleARN, err)
	}
	if out.Credentials == nil {
		return awsv2.Credentials{}, fmt.Errorf("aws: assume role %q: no credentials returned", b.roleARN)
	}

	creds := awsv2.Credentials{
		AccessKeyID:     awsv2.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: awsv2.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    awsv2.ToString(out.Credentials.SessionToken),
		Source:          "appsyncctl.AssumeRole",
	}
	if out.Credentials.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *out.Credentials.Expiration
	}
	return creds, nil
}

// SessionName builds a valid STS session name from name, generating one
// when name is empty.
func SessionName(name string) string {
	if name == "" {
		name = "appsyncctl-" + uuid.NewString()[:8]
	}
	name = invalidSessionChars.ReplaceAllString(name, "-")
	// Truncate session name to 64 chars (AWS limit)
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

var _ awsv2.CredentialsProvider = (*AWSCredentialBroker)(nil)
var _ STSClient = (*sts.Client)(nil)

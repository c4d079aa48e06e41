package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

// S3Client defines the S3 operations used by the state store.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// DynamoDBClient defines the DynamoDB operations used by the state store.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DefaultS3Prefix is the key prefix used when none is configured.
const DefaultS3Prefix = "appsyncctl/"

// S3Store implements platform.StateStore with one JSON object per stack.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Store creates a state store in bucket.
func NewS3Store(client S3Client, bucket, prefix string) *S3Store {
	if prefix == "" {
		prefix = DefaultS3Prefix
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(stack string) string {
	return s.prefix + stack + ".json"
}

// Load returns the snapshot stored for stack.
func (s *S3Store) Load(ctx context.Context, stack string) (*platform.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(s.key(stack)),
	})
	if err != nil {
		if platform.IsNotFound(err) {
			return &platform.Snapshot{}, nil
		}
		return nil, fmt.Errorf("aws state: get s3 object: %w", err)
	}
	if out.Body == nil {
		return &platform.Snapshot{}, nil
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("aws state: read s3 object: %w", err)
	}
	return platform.DecodeSnapshot(data)
}

// Save overwrites the snapshot object for stack.
func (s *S3Store) Save(ctx context.Context, stack string, snap *platform.Snapshot) error {
	data, err := platform.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awsv2.String(s.bucket),
		Key:         awsv2.String(s.key(stack)),
		Body:        bytes.NewReader(data),
		ContentType: awsv2.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("aws state: put s3 object: %w", err)
	}
	return nil
}

// Delete removes the snapshot object for stack.
func (s *S3Store) Delete(ctx context.Context, stack string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(s.key(stack)),
	})
	if err != nil && !platform.IsNotFound(err) {
		return fmt.Errorf("aws state: delete s3 object: %w", err)
	}
	return nil
}

// DynamoDBStore implements platform.StateStore with one item per stack,
// keyed by the string attribute "pk".
type DynamoDBStore struct {
	client DynamoDBClient
	table  string
}

// NewDynamoDBStore creates a state store backed by table.
func NewDynamoDBStore(client DynamoDBClient, table string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table}
}

func stackKey(stack string) map[string]dbtypes.AttributeValue {
	return map[string]dbtypes.AttributeValue{
		"pk": &dbtypes.AttributeValueMemberS{Value: stack},
	}
}

// Load returns the snapshot stored for stack.
func (s *DynamoDBStore) Load(ctx context.Context, stack string) (*platform.Snapshot, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      awsv2.String(s.table),
		Key:            stackKey(stack),
		ConsistentRead: awsv2.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("aws state: get dynamodb item: %w", err)
	}
	if result.Item == nil {
		return &platform.Snapshot{}, nil
	}
	dataAttr, ok := result.Item["data"].(*dbtypes.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("aws state: invalid data attribute type")
	}
	return platform.DecodeSnapshot([]byte(dataAttr.Value))
}

// Save overwrites the item for stack.
func (s *DynamoDBStore) Save(ctx context.Context, stack string, snap *platform.Snapshot) error {
	data, err := platform.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: awsv2.String(s.table),
		Item: map[string]dbtypes.AttributeValue{
			"pk":        &dbtypes.AttributeValueMemberS{Value: stack},
			"apiId":     &dbtypes.AttributeValueMemberS{Value: snap.APIID},
			"runId":     &dbtypes.AttributeValueMemberS{Value: snap.RunID},
			"updatedAt": &dbtypes.AttributeValueMemberS{Value: snap.UpdatedAt.UTC().Format(time.RFC3339)},
			"data":      &dbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	if err != nil {
		return fmt.Errorf("aws state: put dynamodb item: %w", err)
	}
	return nil
}

// Delete removes the item for stack.
func (s *DynamoDBStore) Delete(ctx context.Context, stack string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: awsv2.String(s.table),
		Key:       stackKey(stack),
	})
	if err != nil {
		return fmt.Errorf("aws state: delete dynamodb item: %w", err)
	}
	return nil
}

// Verify interface compliance.
var (
	_ platform.StateStore = (*S3Store)(nil)
	_ platform.StateStore = (*DynamoDBStore)(nil)
)

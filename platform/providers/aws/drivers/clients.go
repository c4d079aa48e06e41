// Package drivers implements the per-kind AppSync reconcilers and the IAM
// role provisioning they depend on. Every driver talks to AWS through a
// narrow client interface so tests can substitute hand-written fakes.
package drivers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AppSyncClient defines the AppSync operations used by the drivers.
type AppSyncClient interface {
	ListGraphqlApis(ctx context.Context, params *appsync.ListGraphqlApisInput, optFns ...func(*appsync.Options)) (*appsync.ListGraphqlApisOutput, error)
	GetGraphqlApi(ctx context.Context, params *appsync.GetGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.GetGraphqlApiOutput, error)
	CreateGraphqlApi(ctx context.Context, params *appsync.CreateGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.CreateGraphqlApiOutput, error)
	UpdateGraphqlApi(ctx context.Context, params *appsync.UpdateGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.UpdateGraphqlApiOutput, error)
	DeleteGraphqlApi(ctx context.Context, params *appsync.DeleteGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.DeleteGraphqlApiOutput, error)

	ListDataSources(ctx context.Context, params *appsync.ListDataSourcesInput, optFns ...func(*appsync.Options)) (*appsync.ListDataSourcesOutput, error)
	CreateDataSource(ctx context.Context, params *appsync.CreateDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.CreateDataSourceOutput, error)
	UpdateDataSource(ctx context.Context, params *appsync.UpdateDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.UpdateDataSourceOutput, error)
	DeleteDataSource(ctx context.Context, params *appsync.DeleteDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.DeleteDataSourceOutput, error)

	StartSchemaCreation(ctx context.Context, params *appsync.StartSchemaCreationInput, optFns ...func(*appsync.Options)) (*appsync.StartSchemaCreationOutput, error)
	GetSchemaCreationStatus(ctx context.Context, params *appsync.GetSchemaCreationStatusInput, optFns ...func(*appsync.Options)) (*appsync.GetSchemaCreationStatusOutput, error)

	ListResolvers(ctx context.Context, params *appsync.ListResolversInput, optFns ...func(*appsync.Options)) (*appsync.ListResolversOutput, error)
	CreateResolver(ctx context.Context, params *appsync.CreateResolverInput, optFns ...func(*appsync.Options)) (*appsync.CreateResolverOutput, error)
	UpdateResolver(ctx context.Context, params *appsync.UpdateResolverInput, optFns ...func(*appsync.Options)) (*appsync.UpdateResolverOutput, error)
	DeleteResolver(ctx context.Context, params *appsync.DeleteResolverInput, optFns ...func(*appsync.Options)) (*appsync.DeleteResolverOutput, error)

	ListFunctions(ctx context.Context, params *appsync.ListFunctionsInput, optFns ...func(*appsync.Options)) (*appsync.ListFunctionsOutput, error)
	CreateFunction(ctx context.Context, params *appsync.CreateFunctionInput, optFns ...func(*appsync.Options)) (*appsync.CreateFunctionOutput, error)
	UpdateFunction(ctx context.Context, params *appsync.UpdateFunctionInput, optFns ...func(*appsync.Options)) (*appsync.UpdateFunctionOutput, error)
	DeleteFunction(ctx context.Context, params *appsync.DeleteFunctionInput, optFns ...func(*appsync.Options)) (*appsync.DeleteFunctionOutput, error)

	ListApiKeys(ctx context.Context, params *appsync.ListApiKeysInput, optFns ...func(*appsync.Options)) (*appsync.ListApiKeysOutput, error)
	CreateApiKey(ctx context.Context, params *appsync.CreateApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.CreateApiKeyOutput, error)
	UpdateApiKey(ctx context.Context, params *appsync.UpdateApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.UpdateApiKeyOutput, error)
	DeleteApiKey(ctx context.Context, params *appsync.DeleteApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.DeleteApiKeyOutput, error)
}

// IAMClient defines the IAM operations used to manage the service role.
type IAMClient interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
}

// STSClient resolves the caller's account id.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// optional returns nil for an empty string so the field carries no opinion.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// stringOrNil converts an optional string for an SDK input.
func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

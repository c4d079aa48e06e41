package drivers

import (
	"context"
	"sync"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/appsync/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockAppSyncClient struct {
	mu    sync.Mutex
	calls []string

	listApisFunc         func(ctx context.Context, params *appsync.ListGraphqlApisInput, optFns ...func(*appsync.Options)) (*appsync.ListGraphqlApisOutput, error)
	getApiFunc           func(ctx context.Context, params *appsync.GetGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.GetGraphqlApiOutput, error)
	createApiFunc        func(ctx context.Context, params *appsync.CreateGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.CreateGraphqlApiOutput, error)
	updateApiFunc        func(ctx context.Context, params *appsync.UpdateGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.UpdateGraphqlApiOutput, error)
	deleteApiFunc        func(ctx context.Context, params *appsync.DeleteGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.DeleteGraphqlApiOutput, error)
	listDataSourcesFunc  func(ctx context.Context, params *appsync.ListDataSourcesInput, optFns ...func(*appsync.Options)) (*appsync.ListDataSourcesOutput, error)
	createDataSourceFunc func(ctx context.Context, params *appsync.CreateDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.CreateDataSourceOutput, error)
	updateDataSourceFunc func(ctx context.Context, params *appsync.UpdateDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.UpdateDataSourceOutput, error)
	deleteDataSourceFunc func(ctx context.Context, params *appsync.DeleteDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.DeleteDataSourceOutput, error)
	startSchemaFunc      func(ctx context.Context, params *appsync.StartSchemaCreationInput, optFns ...func(*appsync.Options)) (*appsync.StartSchemaCreationOutput, error)
	schemaStatusFunc     func(ctx context.Context, params *appsync.GetSchemaCreationStatusInput, optFns ...func(*appsync.Options)) (*appsync.GetSchemaCreationStatusOutput, error)
	listResolversFunc    func(ctx context.Context, params *appsync.ListResolversInput, optFns ...func(*appsync.Options)) (*appsync.ListResolversOutput, error)
	createResolverFunc   func(ctx context.Context, params *appsync.CreateResolverInput, optFns ...func(*appsync.Options)) (*appsync.CreateResolverOutput, error)
	updateResolverFunc   func(ctx context.Context, params *appsync.UpdateResolverInput, optFns ...func(*appsync.Options)) (*appsync.UpdateResolverOutput, error)
	deleteResolverFunc   func(ctx context.Context, params *appsync.DeleteResolverInput, optFns ...func(*appsync.Options)) (*appsync.DeleteResolverOutput, error)
	listFunctionsFunc    func(ctx context.Context, params *appsync.ListFunctionsInput, optFns ...func(*appsync.Options)) (*appsync.ListFunctionsOutput, error)
	createFunctionFunc   func(ctx context.Context, params *appsync.CreateFunctionInput, optFns ...func(*appsync.Options)) (*appsync.CreateFunctionOutput, error)
	updateFunctionFunc   func(ctx context.Context, params *appsync.UpdateFunctionInput, optFns ...func(*appsync.Options)) (*appsync.UpdateFunctionOutput, error)
	deleteFunctionFunc   func(ctx context.Context, params *appsync.DeleteFunctionInput, optFns ...func(*appsync.Options)) (*appsync.DeleteFunctionOutput, error)
	listApiKeysFunc      func(ctx context.Context, params *appsync.ListApiKeysInput, optFns ...func(*appsync.Options)) (*appsync.ListApiKeysOutput, error)
	createApiKeyFunc     func(ctx context.Context, params *appsync.CreateApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.CreateApiKeyOutput, error)
	updateApiKeyFunc     func(ctx context.Context, params *appsync.UpdateApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.UpdateApiKeyOutput, error)
	deleteApiKeyFunc     func(ctx context.Context, params *appsync.DeleteApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.DeleteApiKeyOutput, error)
}

func (m *mockAppSyncClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// count returns how many times the named operation was called.
func (m *mockAppSyncClient) count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *mockAppSyncClient) ListGraphqlApis(ctx context.Context, params *appsync.ListGraphqlApisInput, optFns ...func(*appsync.Options)) (*appsync.ListGraphqlApisOutput, error) {
	m.record("ListGraphqlApis")
	if m.listApisFunc != nil {
		return m.listApisFunc(ctx, params, optFns...)
	}
	return &appsync.ListGraphqlApisOutput{}, nil
}

func (m *mockAppSyncClient) GetGraphqlApi(ctx context.Context, params *appsync.GetGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.GetGraphqlApiOutput, error) {
	m.record("GetGraphqlApi")
	if m.getApiFunc != nil {
		return m.getApiFunc(ctx, params, optFns...)
	}
	return nil, &types.NotFoundException{Message: awsv2.String("api not found")}
}

func (m *mockAppSyncClient) CreateGraphqlApi(ctx context.Context, params *appsync.CreateGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.CreateGraphqlApiOutput, error) {
	m.record("CreateGraphqlApi")
	if m.createApiFunc != nil {
		return m.createApiFunc(ctx, params, optFns...)
	}
	return &appsync.CreateGraphqlApiOutput{GraphqlApi: &types.GraphqlApi{ApiId: awsv2.String("api-new"), Name: params.Name, Arn: awsv2.String("arn:aws:appsync:us-east-1:123456789012:apis/api-new")}}, nil
}

func (m *mockAppSyncClient) UpdateGraphqlApi(ctx context.Context, params *appsync.UpdateGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.UpdateGraphqlApiOutput, error) {
	m.record("UpdateGraphqlApi")
	if m.updateApiFunc != nil {
		return m.updateApiFunc(ctx, params, optFns...)
	}
	return &appsync.UpdateGraphqlApiOutput{GraphqlApi: &types.GraphqlApi{ApiId: params.ApiId, Name: params.Name}}, nil
}

func (m *mockAppSyncClient) DeleteGraphqlApi(ctx context.Context, params *appsync.DeleteGraphqlApiInput, optFns ...func(*appsync.Options)) (*appsync.DeleteGraphqlApiOutput, error) {
	m.record("DeleteGraphqlApi")
	if m.deleteApiFunc != nil {
		return m.deleteApiFunc(ctx, params, optFns...)
	}
	return &appsync.DeleteGraphqlApiOutput{}, nil
}

func (m *mockAppSyncClient) ListDataSources(ctx context.Context, params *appsync.ListDataSourcesInput, optFns ...func(*appsync.Options)) (*appsync.ListDataSourcesOutput, error) {
	m.record("ListDataSources")
	if m.listDataSourcesFunc != nil {
		return m.listDataSourcesFunc(ctx, params, optFns...)
	}
	return &appsync.ListDataSourcesOutput{}, nil
}

func (m *mockAppSyncClient) CreateDataSource(ctx context.Context, params *appsync.CreateDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.CreateDataSourceOutput, error) {
	m.record("CreateDataSource")
	if m.createDataSourceFunc != nil {
		return m.createDataSourceFunc(ctx, params, optFns...)
	}
	return &appsync.CreateDataSourceOutput{DataSource: &types.DataSource{Name: params.Name, Type: params.Type, DataSourceArn: awsv2.String("arn:ds/" + *params.Name)}}, nil
}

func (m *mockAppSyncClient) UpdateDataSource(ctx context.Context, params *appsync.UpdateDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.UpdateDataSourceOutput, error) {
	m.record("UpdateDataSource")
	if m.updateDataSourceFunc != nil {
		return m.updateDataSourceFunc(ctx, params, optFns...)
	}
	return &appsync.UpdateDataSourceOutput{DataSource: &types.DataSource{Name: params.Name, Type: params.Type, DataSourceArn: awsv2.String("arn:ds/" + *params.Name)}}, nil
}

func (m *mockAppSyncClient) DeleteDataSource(ctx context.Context, params *appsync.DeleteDataSourceInput, optFns ...func(*appsync.Options)) (*appsync.DeleteDataSourceOutput, error) {
	m.record("DeleteDataSource")
	if m.deleteDataSourceFunc != nil {
		return m.deleteDataSourceFunc(ctx, params, optFns...)
	}
	return &appsync.DeleteDataSourceOutput{}, nil
}

func (m *mockAppSyncClient) StartSchemaCreation(ctx context.Context, params *appsync.StartSchemaCreationInput, optFns ...func(*appsync.Options)) (*appsync.StartSchemaCreationOutput, error) {
	m.record("StartSchemaCreation")
	if m.startSchemaFunc != nil {
		return m.startSchemaFunc(ctx, params, optFns...)
	}
	return &appsync.StartSchemaCreationOutput{Status: types.SchemaStatus("PROCESSING")}, nil
}

func (m *mockAppSyncClient) GetSchemaCreationStatus(ctx context.Context, params *appsync.GetSchemaCreationStatusInput, optFns ...func(*appsync.Options)) (*appsync.GetSchemaCreationStatusOutput, error) {
	m.record("GetSchemaCreationStatus")
	if m.schemaStatusFunc != nil {
		return m.schemaStatusFunc(ctx, params, optFns...)
	}
	return &appsync.GetSchemaCreationStatusOutput{Status: types.SchemaStatus("SUCCESS")}, nil
}

func (m *mockAppSyncClient) ListResolvers(ctx context.Context, params *appsync.ListResolversInput, optFns ...func(*appsync.Options)) (*appsync.ListResolversOutput, error) {
	m.record("ListResolvers")
	if m.listResolversFunc != nil {
		return m.listResolversFunc(ctx, params, optFns...)
	}
	return &appsync.ListResolversOutput{}, nil
}

func (m *mockAppSyncClient) CreateResolver(ctx context.Context, params *appsync.CreateResolverInput, optFns ...func(*appsync.Options)) (*appsync.CreateResolverOutput, error) {
	m.record("CreateResolver")
	if m.createResolverFunc != nil {
		return m.createResolverFunc(ctx, params, optFns...)
	}
	return &appsync.CreateResolverOutput{Resolver: &types.Resolver{TypeName: params.TypeName, FieldName: params.FieldName, ResolverArn: awsv2.String("arn:resolver/" + *params.TypeName + "/" + *params.FieldName)}}, nil
}

func (m *mockAppSyncClient) UpdateResolver(ctx context.Context, params *appsync.UpdateResolverInput, optFns ...func(*appsync.Options)) (*appsync.UpdateResolverOutput, error) {
	m.record("UpdateResolver")
	if m.updateResolverFunc != nil {
		return m.updateResolverFunc(ctx, params, optFns...)
	}
	return &appsync.UpdateResolverOutput{Resolver: &types.Resolver{TypeName: params.TypeName, FieldName: params.FieldName}}, nil
}

func (m *mockAppSyncClient) DeleteResolver(ctx context.Context, params *appsync.DeleteResolverInput, optFns ...func(*appsync.Options)) (*appsync.DeleteResolverOutput, error) {
	m.record("DeleteResolver")
	if m.deleteResolverFunc != nil {
		return m.deleteResolverFunc(ctx, params, optFns...)
	}
	return &appsync.DeleteResolverOutput{}, nil
}

func (m *mockAppSyncClient) ListFunctions(ctx context.Context, params *appsync.ListFunctionsInput, optFns ...func(*appsync.Options)) (*appsync.ListFunctionsOutput, error) {
	m.record("ListFunctions")
	if m.listFunctionsFunc != nil {
		return m.listFunctionsFunc(ctx, params, optFns...)
	}
	return &appsync.ListFunctionsOutput{}, nil
}

func (m *mockAppSyncClient) CreateFunction(ctx context.Context, params *appsync.CreateFunctionInput, optFns ...func(*appsync.Options)) (*appsync.CreateFunctionOutput, error) {
	m.record("CreateFunction")
	if m.createFunctionFunc != nil {
		return m.createFunctionFunc(ctx, params, optFns...)
	}
	return &appsync.CreateFunctionOutput{FunctionConfiguration: &types.FunctionConfiguration{Name: params.Name, DataSourceName: params.DataSourceName, FunctionId: awsv2.String("fn-" + *params.Name)}}, nil
}

func (m *mockAppSyncClient) UpdateFunction(ctx context.Context, params *appsync.UpdateFunctionInput, optFns ...func(*appsync.Options)) (*appsync.UpdateFunctionOutput, error) {
	m.record("UpdateFunction")
	if m.updateFunctionFunc != nil {
		return m.updateFunctionFunc(ctx, params, optFns...)
	}
	return &appsync.UpdateFunctionOutput{FunctionConfiguration: &types.FunctionConfiguration{Name: params.Name, DataSourceName: params.DataSourceName, FunctionId: params.FunctionId}}, nil
}

func (m *mockAppSyncClient) DeleteFunction(ctx context.Context, params *appsync.DeleteFunctionInput, optFns ...func(*appsync.Options)) (*appsync.DeleteFunctionOutput, error) {
	m.record("DeleteFunction")
	if m.deleteFunctionFunc != nil {
		return m.deleteFunctionFunc(ctx, params, optFns...)
	}
	return &appsync.DeleteFunctionOutput{}, nil
}

func (m *mockAppSyncClient) ListApiKeys(ctx context.Context, params *appsync.ListApiKeysInput, optFns ...func(*appsync.Options)) (*appsync.ListApiKeysOutput, error) {
	m.record("ListApiKeys")
	if m.listApiKeysFunc != nil {
		return m.listApiKeysFunc(ctx, params, optFns...)
	}
	return &appsync.ListApiKeysOutput{}, nil
}

func (m *mockAppSyncClient) CreateApiKey(ctx context.Context, params *appsync.CreateApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.CreateApiKeyOutput, error) {
	m.record("CreateApiKey")
	if m.createApiKeyFunc != nil {
		return m.createApiKeyFunc(ctx, params, optFns...)
	}
	return &appsync.CreateApiKeyOutput{ApiKey: &types.ApiKey{Id: awsv2.String("da2-" + *params.Description), Description: params.Description, Expires: params.Expires}}, nil
}

func (m *mockAppSyncClient) UpdateApiKey(ctx context.Context, params *appsync.UpdateApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.UpdateApiKeyOutput, error) {
	m.record("UpdateApiKey")
	if m.updateApiKeyFunc != nil {
		return m.updateApiKeyFunc(ctx, params, optFns...)
	}
	return &appsync.UpdateApiKeyOutput{ApiKey: &types.ApiKey{Id: params.Id, Description: params.Description, Expires: params.Expires}}, nil
}

func (m *mockAppSyncClient) DeleteApiKey(ctx context.Context, params *appsync.DeleteApiKeyInput, optFns ...func(*appsync.Options)) (*appsync.DeleteApiKeyOutput, error) {
	m.record("DeleteApiKey")
	if m.deleteApiKeyFunc != nil {
		return m.deleteApiKeyFunc(ctx, params, optFns...)
	}
	return &appsync.DeleteApiKeyOutput{}, nil
}

type mockIAMClient struct {
	mu    sync.Mutex
	calls []string

	createFunc       func(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	getFunc          func(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	deleteFunc       func(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	getPolicyFunc    func(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
	putPolicyFunc    func(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	deletePolicyFunc func(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
}

func (m *mockIAMClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockIAMClient) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	m.record("CreateRole")
	if m.createFunc != nil {
		return m.createFunc(ctx, params, optFns...)
	}
	return &iam.CreateRoleOutput{
		Role: &iamtypes.Role{
			RoleName: params.RoleName,
			Arn:      awsv2.String("arn:aws:iam::123456789012:role/" + *params.RoleName),
		},
	}, nil
}

func (m *mockIAMClient) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	m.record("GetRole")
	if m.getFunc != nil {
		return m.getFunc(ctx, params, optFns...)
	}
	return nil, &iamtypes.NoSuchEntityException{Message: awsv2.String("role not found")}
}

func (m *mockIAMClient) DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	m.record("DeleteRole")
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, params, optFns...)
	}
	return &iam.DeleteRoleOutput{}, nil
}

func (m *mockIAMClient) GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error) {
	m.record("GetRolePolicy")
	if m.getPolicyFunc != nil {
		return m.getPolicyFunc(ctx, params, optFns...)
	}
	return nil, &iamtypes.NoSuchEntityException{Message: awsv2.String("policy not found")}
}

func (m *mockIAMClient) PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	m.record("PutRolePolicy")
	if m.putPolicyFunc != nil {
		return m.putPolicyFunc(ctx, params, optFns...)
	}
	return &iam.PutRolePolicyOutput{}, nil
}

func (m *mockIAMClient) DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	m.record("DeleteRolePolicy")
	if m.deletePolicyFunc != nil {
		return m.deletePolicyFunc(ctx, params, optFns...)
	}
	return &iam.DeleteRolePolicyOutput{}, nil
}

type mockSTSClient struct {
	calls   int
	account string
}

func (m *mockSTSClient) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	m.calls++
	return &sts.GetCallerIdentityOutput{Account: awsv2.String(m.account)}, nil
}

var (
	_ AppSyncClient = (*mockAppSyncClient)(nil)
	_ IAMClient     = (*mockIAMClient)(nil)
	_ STSClient     = (*mockSTSClient)(nil)
)

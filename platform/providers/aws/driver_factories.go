package aws

import (
	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
	"github.com/GoCodeAlone/appsyncctl/platform/providers/aws/drivers"
)

// NewDrivers assembles one driver per kind over the given clients. All
// drivers share one Limits value, so the request budget in opts applies to
// the run as a whole.
func NewDrivers(appsyncClient drivers.AppSyncClient, iamClient drivers.IAMClient, stsClient drivers.STSClient, opts config.Options) platform.Drivers {
	limits := platform.NewLimits(opts.Concurrency, opts.RequestsPerSecond)
	return platform.Drivers{
		API:         drivers.NewGraphQLAPIDriver(appsyncClient),
		Role:        drivers.NewRoleProvisioner(drivers.NewIAMIdentityProvisioner(iamClient), stsClient),
		DataSources: drivers.NewDataSourceDriver(appsyncClient, limits),
		Schema:      drivers.NewSchemaDriver(appsyncClient, opts.SchemaPollInterval),
		Resolvers:   drivers.NewResolverDriver(appsyncClient, limits, opts.DefaultTemplates),
		Functions:   drivers.NewFunctionDriver(appsyncClient, limits),
		APIKeys:     drivers.NewAPIKeyDriver(appsyncClient, limits, opts.APIKeyMatching),
	}
}

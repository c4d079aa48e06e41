package drivers

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/appsync/types"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
)

// GraphQLAPIDriver reconciles the GraphQL API resource.
type GraphQLAPIDriver struct {
	client AppSyncClient
}

// NewGraphQLAPIDriver creates a GraphQL API driver.
func NewGraphQLAPIDriver(client AppSyncClient) *GraphQLAPIDriver {
	return &GraphQLAPIDriver{client: client}
}

// Reconcile finds the API by id, then by name, and creates it when neither
// matches. A found API is updated only when the compared fields drifted.
func (d *GraphQLAPIDriver) Reconcile(ctx context.Context, obs platform.Observer, spec *config.Spec, prior *platform.Snapshot) (platform.APIRecord, error) {
	api, err := d.find(ctx, spec, prior)
	if err != nil {
		return platform.APIRecord{}, err
	}

	if api == nil {
		out, err := d.client.CreateGraphqlApi(ctx, &appsync.CreateGraphqlApiInput{
			Name:                              awsv2.String(spec.Name),
			AuthenticationType:                types.AuthenticationType(spec.AuthenticationType),
			UserPoolConfig:                    userPoolInput(spec.UserPoolConfig, spec.Region),
			OpenIDConnectConfig:               oidcInput(spec.OpenIDConnectConfig),
			AdditionalAuthenticationProviders: providersInput(spec.AdditionalAuthenticationProviders, spec.Region),
			LogConfig:                         logConfigInput(spec.LogConfig),
		})
		if err != nil {
			return platform.APIRecord{}, fmt.Errorf("appsync: create api %q: %w", spec.Name, err)
		}
		obs.Applied(ctx, platform.KindAPI, spec.Name, platform.ActionCreate, nil)
		return apiRecord(out.GraphqlApi, true), nil
	}

	owned := prior != nil && prior.IsAPICreator && prior.APIID == deref(api.ApiId)
	action, diffs := platform.Classify(desiredAPIFields(spec), deployedAPIFields(api), true)
	obs.Applied(ctx, platform.KindAPI, spec.Name, action, diffs)
	if action == platform.ActionIgnore {
		return apiRecord(api, owned), nil
	}

	out, err := d.client.UpdateGraphqlApi(ctx, &appsync.UpdateGraphqlApiInput{
		ApiId:                             api.ApiId,
		Name:                              awsv2.String(spec.Name),
		AuthenticationType:                types.AuthenticationType(spec.AuthenticationType),
		UserPoolConfig:                    userPoolInput(spec.UserPoolConfig, spec.Region),
		OpenIDConnectConfig:               oidcInput(spec.OpenIDConnectConfig),
		AdditionalAuthenticationProviders: providersInput(spec.AdditionalAuthenticationProviders, spec.Region),
		LogConfig:                         logConfigInput(spec.LogConfig),
	})
	if err != nil {
		return platform.APIRecord{}, fmt.Errorf("appsync: update api %q: %w", spec.Name, err)
	}
	return apiRecord(out.GraphqlApi, owned), nil
}

// Delete removes the API. An API that is already gone is not an error.
func (d *GraphQLAPIDriver) Delete(ctx context.Context, obs platform.Observer, apiID string) error {
	_, err := d.client.DeleteGraphqlApi(ctx, &appsync.DeleteGraphqlApiInput{ApiId: awsv2.String(apiID)})
	if err != nil {
		if platform.IsNotFound(err) {
			obs.Notice(ctx, "api already removed", "api_id", apiID)
			return nil
		}
		return fmt.Errorf("appsync: delete api %q: %w", apiID, err)
	}
	obs.Applied(ctx, platform.KindAPI, apiID, platform.ActionDelete, nil)
	return nil
}

func (d *GraphQLAPIDriver) find(ctx context.Context, spec *config.Spec, prior *platform.Snapshot) (*types.GraphqlApi, error) {
	id := spec.APIID
	if id == "" && prior != nil {
		id = prior.APIID
	}
	if id != "" {
		out, err := d.client.GetGraphqlApi(ctx, &appsync.GetGraphqlApiInput{ApiId: awsv2.String(id)})
		switch {
		case err == nil && out.GraphqlApi != nil:
			return out.GraphqlApi, nil
		case err != nil && !platform.IsNotFound(err):
			return nil, fmt.Errorf("appsync: get api %q: %w", id, err)
		}
	}

	apis, err := platform.ListAll(ctx, func(ctx context.Context, token *string) ([]types.GraphqlApi, *string, error) {
		out, err := d.client.ListGraphqlApis(ctx, &appsync.ListGraphqlApisInput{NextToken: token})
		if err != nil {
			return nil, nil, err
		}
		return out.GraphqlApis, out.NextToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("appsync: list apis: %w", err)
	}
	for i := range apis {
		if deref(apis[i].Name) == spec.Name {
			return &apis[i], nil
		}
	}
	return nil, nil
}

func apiRecord(api *types.GraphqlApi, owned bool) platform.APIRecord {
	if api == nil {
		return platform.APIRecord{Owned: owned}
	}
	return platform.APIRecord{
		ID:    deref(api.ApiId),
		ARN:   deref(api.Arn),
		Name:  deref(api.Name),
		URIs:  api.Uris,
		Owned: owned,
	}
}

// Provider sub-configs are projected with their service defaults filled in
// so an omitted optional setting never reads as drift.

func desiredAPIFields(spec *config.Spec) platform.Fields {
	providers := make([]map[string]any, 0, len(spec.AdditionalAuthenticationProviders))
	for _, p := range spec.AdditionalAuthenticationProviders {
		providers = append(providers, map[string]any{
			"authenticationType":  p.AuthenticationType,
			"userPoolConfig":      userPoolShape(p.UserPoolConfig, spec.Region, false),
			"openIdConnectConfig": oidcShape(p.OpenIDConnectConfig),
		})
	}
	f := platform.Fields{
		"name":                              spec.Name,
		"authenticationType":                spec.AuthenticationType,
		"userPoolConfig":                    userPoolShape(spec.UserPoolConfig, spec.Region, true),
		"openIdConnectConfig":               oidcShape(spec.OpenIDConnectConfig),
		"additionalAuthenticationProviders": providers,
	}
	if spec.LogConfig != nil {
		f["logConfig"] = map[string]any{
			"cloudWatchLogsRoleArn": spec.LogConfig.CloudWatchLogsRoleArn,
			"fieldLogLevel":         spec.LogConfig.FieldLogLevel,
		}
	}
	return f
}

func deployedAPIFields(api *types.GraphqlApi) platform.Fields {
	providers := make([]map[string]any, 0, len(api.AdditionalAuthenticationProviders))
	for _, p := range api.AdditionalAuthenticationProviders {
		var up map[string]any
		if p.UserPoolConfig != nil {
			up = map[string]any{
				"userPoolId":       deref(p.UserPoolConfig.UserPoolId),
				"awsRegion":        deref(p.UserPoolConfig.AwsRegion),
				"appIdClientRegex": deref(p.UserPoolConfig.AppIdClientRegex),
			}
		}
		providers = append(providers, map[string]any{
			"authenticationType":  string(p.AuthenticationType),
			"userPoolConfig":      up,
			"openIdConnectConfig": deployedOIDCShape(p.OpenIDConnectConfig),
		})
	}

	var up map[string]any
	if api.UserPoolConfig != nil {
		up = map[string]any{
			"userPoolId":       deref(api.UserPoolConfig.UserPoolId),
			"awsRegion":        deref(api.UserPoolConfig.AwsRegion),
			"appIdClientRegex": deref(api.UserPoolConfig.AppIdClientRegex),
			"defaultAction":    string(api.UserPoolConfig.DefaultAction),
		}
	}
	var logCfg map[string]any
	if api.LogConfig != nil {
		logCfg = map[string]any{
			"cloudWatchLogsRoleArn": deref(api.LogConfig.CloudWatchLogsRoleArn),
			"fieldLogLevel":         string(api.LogConfig.FieldLogLevel),
		}
	}
	return platform.Fields{
		"name":                              deref(api.Name),
		"authenticationType":                string(api.AuthenticationType),
		"userPoolConfig":                    up,
		"openIdConnectConfig":               deployedOIDCShape(api.OpenIDConnectConfig),
		"additionalAuthenticationProviders": providers,
		"logConfig":                         logCfg,
	}
}

func userPoolShape(c *config.UserPoolConfig, region string, primary bool) map[string]any {
	if c == nil {
		return nil
	}
	shape := map[string]any{
		"userPoolId":       c.UserPoolID,
		"awsRegion":        firstNonEmpty(c.AwsRegion, region),
		"appIdClientRegex": deref(c.AppIDClientRegex),
	}
	if primary {
		shape["defaultAction"] = firstNonEmpty(c.DefaultAction, "ALLOW")
	}
	return shape
}

func oidcShape(c *config.OIDCConfig) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"issuer":   c.Issuer,
		"clientId": deref(c.ClientID),
		"iatTTL":   c.IatTTL,
		"authTTL":  c.AuthTTL,
	}
}

func deployedOIDCShape(c *types.OpenIDConnectConfig) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"issuer":   deref(c.Issuer),
		"clientId": deref(c.ClientId),
		"iatTTL":   c.IatTTL,
		"authTTL":  c.AuthTTL,
	}
}

func userPoolInput(c *config.UserPoolConfig, region string) *types.UserPoolConfig {
	if c == nil {
		return nil
	}
	return &types.UserPoolConfig{
		UserPoolId:       awsv2.String(c.UserPoolID),
		AwsRegion:        awsv2.String(firstNonEmpty(c.AwsRegion, region)),
		DefaultAction:    types.DefaultAction(firstNonEmpty(c.DefaultAction, "ALLOW")),
		AppIdClientRegex: c.AppIDClientRegex,
	}
}

func oidcInput(c *config.OIDCConfig) *types.OpenIDConnectConfig {
	if c == nil {
		return nil
	}
	return &types.OpenIDConnectConfig{
		Issuer:   awsv2.String(c.Issuer),
		ClientId: c.ClientID,
		IatTTL:   c.IatTTL,
		AuthTTL:  c.AuthTTL,
	}
}

func providersInput(providers []config.AuthProvider, region string) []types.AdditionalAuthenticationProvider {
	if len(providers) == 0 {
		return nil
	}
	out := make([]types.AdditionalAuthenticationProvider, 0, len(providers))
	for _, p := range providers {
		ap := types.AdditionalAuthenticationProvider{
			AuthenticationType:  types.AuthenticationType(p.AuthenticationType),
			OpenIDConnectConfig: oidcInput(p.OpenIDConnectConfig),
		}
		if p.UserPoolConfig != nil {
			ap.UserPoolConfig = &types.CognitoUserPoolConfig{
				UserPoolId:       awsv2.String(p.UserPoolConfig.UserPoolID),
				AwsRegion:        awsv2.String(firstNonEmpty(p.UserPoolConfig.AwsRegion, region)),
				AppIdClientRegex: p.UserPoolConfig.AppIDClientRegex,
			}
		}
		out = append(out, ap)
	}
	return out
}

func logConfigInput(c *config.LogConfig) *types.LogConfig {
	if c == nil {
		return nil
	}
	return &types.LogConfig{
		CloudWatchLogsRoleArn: awsv2.String(c.CloudWatchLogsRoleArn),
		FieldLogLevel:         types.FieldLogLevel(c.FieldLogLevel),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ platform.APIDriver = (*GraphQLAPIDriver)(nil)

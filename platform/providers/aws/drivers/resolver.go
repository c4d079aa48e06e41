package drivers

import (
	"context"
	"fmt"
	"sort"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/appsync/types"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
)

// Passthrough templates used for resolvers on AWS_LAMBDA data sources that
// declare no templates of their own.
const (
	LambdaRequestTemplate  = `{ "version": "2017-02-28", "operation": "Invoke", "payload": $util.toJson($context.arguments) }`
	LambdaResponseTemplate = `$util.toJson($context.result)`
)

// ResolverDriver reconciles resolvers. The service lists resolvers per
// parent type only.
type ResolverDriver struct {
	client AppSyncClient
	limits platform.Limits
	policy string
}

// NewResolverDriver creates a resolver driver. policy is one of
// config.TemplatesAlways or config.TemplatesOnCreate.
func NewResolverDriver(client AppSyncClient, limits platform.Limits, policy string) *ResolverDriver {
	if policy == "" {
		policy = config.TemplatesAlways
	}
	return &ResolverDriver{client: client, limits: limits, policy: policy}
}

// resolverItem is a declared resolver with its effective templates.
type resolverItem struct {
	cfg      config.Resolver
	request  string
	response string
	// defaulted marks templates substituted by the driver rather than
	// declared.
	defaultedRequest  bool
	defaultedResponse bool
}

type resolverStrategy struct {
	policy string
}

func (resolverStrategy) DesiredKey(d resolverItem) string { return d.cfg.Key() }

func (resolverStrategy) DeployedKey(r types.Resolver) string {
	return deref(r.TypeName) + "." + deref(r.FieldName)
}

func (s resolverStrategy) DesiredFields(d resolverItem) platform.Fields {
	f := platform.Fields{
		"kind":           d.cfg.Kind,
		"dataSourceName": d.cfg.DataSource,
		"request":        optional(d.request),
		"response":       optional(d.response),
	}
	if s.policy == config.TemplatesOnCreate {
		if d.defaultedRequest {
			f["request"] = nil
		}
		if d.defaultedResponse {
			f["response"] = nil
		}
	}
	if d.cfg.IsPipeline() {
		f["functions"] = append([]string{}, d.cfg.Functions...)
	}
	return f
}

func (resolverStrategy) DeployedFields(r types.Resolver) platform.Fields {
	kind := string(r.Kind)
	if kind == "" {
		kind = "UNIT"
	}
	f := platform.Fields{
		"kind":           kind,
		"dataSourceName": deref(r.DataSourceName),
		"request":        deref(r.RequestMappingTemplate),
		"response":       deref(r.ResponseMappingTemplate),
	}
	if r.PipelineConfig != nil {
		f["functions"] = append([]string{}, r.PipelineConfig.Functions...)
	}
	return f
}

// Reconcile creates or updates every desired resolver. sources supplies the
// types of the data sources deployed earlier in the run.
func (d *ResolverDriver) Reconcile(ctx context.Context, obs platform.Observer, apiID string, desired []config.Resolver, sources []platform.DataSourceRecord) ([]platform.ResolverRecord, error) {
	sourceType := make(map[string]string, len(sources))
	for _, s := range sources {
		sourceType[s.Name] = s.Type
	}

	items := make([]resolverItem, len(desired))
	for i, r := range desired {
		item := resolverItem{cfg: r, request: r.Request, response: r.Response}
		if !r.IsPipeline() && sourceType[r.DataSource] == config.DataSourceLambda {
			if item.request == "" {
				item.request, item.defaultedRequest = LambdaRequestTemplate, true
			}
			if item.response == "" {
				item.response, item.defaultedResponse = LambdaResponseTemplate, true
			}
		}
		items[i] = item
	}

	typeNames := make([]string, 0, len(desired))
	for _, r := range desired {
		typeNames = append(typeNames, r.Type)
	}
	deployed, err := d.list(ctx, apiID, distinct(typeNames))
	if err != nil {
		return nil, err
	}

	steps := platform.PlanItems[resolverItem, types.Resolver](resolverStrategy{policy: d.policy}, items, deployed)
	records := make([]platform.ResolverRecord, len(steps))
	err = platform.ForEach(ctx, d.limits, len(steps), func(ctx context.Context, i int) error {
		step := steps[i]
		item := step.Desired
		arn := deref(step.Deployed.ResolverArn)

		switch step.Action {
		case platform.ActionCreate:
			out, err := d.client.CreateResolver(ctx, &appsync.CreateResolverInput{
				ApiId:                   awsv2.String(apiID),
				TypeName:                awsv2.String(item.cfg.Type),
				FieldName:               awsv2.String(item.cfg.Field),
				DataSourceName:          stringOrNil(item.cfg.DataSource),
				Kind:                    types.ResolverKind(item.cfg.Kind),
				PipelineConfig:          pipelineConfig(item.cfg),
				RequestMappingTemplate:  stringOrNil(item.request),
				ResponseMappingTemplate: stringOrNil(item.response),
			})
			if err != nil {
				return fmt.Errorf("appsync: create resolver %q: %w", step.Key, err)
			}
			if out.Resolver != nil {
				arn = deref(out.Resolver.ResolverArn)
			}
		case platform.ActionUpdate:
			request, response := item.request, item.response
			if d.policy == config.TemplatesOnCreate {
				if item.defaultedRequest {
					request = deref(step.Deployed.RequestMappingTemplate)
				}
				if item.defaultedResponse {
					response = deref(step.Deployed.ResponseMappingTemplate)
				}
			}
			out, err := d.client.UpdateResolver(ctx, &appsync.UpdateResolverInput{
				ApiId:                   awsv2.String(apiID),
				TypeName:                awsv2.String(item.cfg.Type),
				FieldName:               awsv2.String(item.cfg.Field),
				DataSourceName:          stringOrNil(item.cfg.DataSource),
				Kind:                    types.ResolverKind(item.cfg.Kind),
				PipelineConfig:          pipelineConfig(item.cfg),
				RequestMappingTemplate:  stringOrNil(request),
				ResponseMappingTemplate: stringOrNil(response),
			})
			if err != nil {
				return fmt.Errorf("appsync: update resolver %q: %w", step.Key, err)
			}
			if out.Resolver != nil {
				arn = deref(out.Resolver.ResolverArn)
			}
		}
		obs.Applied(ctx, platform.KindResolver, step.Key, step.Action, step.Diffs)

		records[i] = platform.ResolverRecord{
			Type:       item.cfg.Type,
			Field:      item.cfg.Field,
			DataSource: item.cfg.DataSource,
			ARN:        arn,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RemoveObsolete deletes resolvers that are no longer declared. Deployed
// resolvers are listed for every type that is declared now or was recorded
// before, so a type dropped from the configuration is still cleaned up.
func (d *ResolverDriver) RemoveObsolete(ctx context.Context, obs platform.Observer, apiID string, desired []config.Resolver, prior []platform.ResolverRef) error {
	typeNames := make([]string, 0, len(desired)+len(prior))
	for _, r := range desired {
		typeNames = append(typeNames, r.Type)
	}
	for _, r := range prior {
		typeNames = append(typeNames, r.Type)
	}
	deployed, err := d.list(ctx, apiID, distinct(typeNames))
	if err != nil {
		return err
	}
	live := make([]platform.ResolverRef, 0, len(deployed))
	for _, r := range deployed {
		live = append(live, platform.ResolverRef{Type: deref(r.TypeName), Field: deref(r.FieldName)})
	}

	keep := platform.KeySet(desired, config.Resolver.Key)
	return d.delete(ctx, obs, apiID, platform.Obsolete(keep, resolverRefKey, prior, live))
}

// RemoveRecorded deletes only the resolvers recorded in prior.
func (d *ResolverDriver) RemoveRecorded(ctx context.Context, obs platform.Observer, apiID string, prior []platform.ResolverRef) error {
	return d.delete(ctx, obs, apiID, platform.Obsolete(nil, resolverRefKey, prior))
}

func resolverRefKey(r platform.ResolverRef) string { return r.Type + "." + r.Field }

func (d *ResolverDriver) delete(ctx context.Context, obs platform.Observer, apiID string, refs []platform.ResolverRef) error {
	return platform.ForEach(ctx, d.limits, len(refs), func(ctx context.Context, i int) error {
		ref := refs[i]
		_, err := d.client.DeleteResolver(ctx, &appsync.DeleteResolverInput{
			ApiId:     awsv2.String(apiID),
			TypeName:  awsv2.String(ref.Type),
			FieldName: awsv2.String(ref.Field),
		})
		if err != nil {
			if platform.IsNotFound(err) {
				obs.Notice(ctx, "resolver already removed", "key", resolverRefKey(ref))
				return nil
			}
			return fmt.Errorf("appsync: delete resolver %q: %w", resolverRefKey(ref), err)
		}
		obs.Applied(ctx, platform.KindResolver, resolverRefKey(ref), platform.ActionDelete, nil)
		return nil
	})
}

// list returns the deployed resolvers of every named type, in type order.
func (d *ResolverDriver) list(ctx context.Context, apiID string, typeNames []string) ([]types.Resolver, error) {
	perType := make([][]types.Resolver, len(typeNames))
	err := platform.ForEach(ctx, d.limits, len(typeNames), func(ctx context.Context, i int) error {
		items, err := platform.ListAll(ctx, func(ctx context.Context, token *string) ([]types.Resolver, *string, error) {
			out, err := d.client.ListResolvers(ctx, &appsync.ListResolversInput{
				ApiId:     awsv2.String(apiID),
				TypeName:  awsv2.String(typeNames[i]),
				NextToken: token,
			})
			if err != nil {
				return nil, nil, err
			}
			return out.Resolvers, out.NextToken, nil
		})
		if err != nil {
			return fmt.Errorf("appsync: list resolvers of %q: %w", typeNames[i], err)
		}
		perType[i] = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	var all []types.Resolver
	for _, items := range perType {
		all = append(all, items...)
	}
	return all, nil
}

func pipelineConfig(r config.Resolver) *types.PipelineConfig {
	if !r.IsPipeline() {
		return nil
	}
	return &types.PipelineConfig{Functions: append([]string{}, r.Functions...)}
}

// distinct returns the unique values in sorted order.
func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

var _ platform.ResolverDriver = (*ResolverDriver)(nil)

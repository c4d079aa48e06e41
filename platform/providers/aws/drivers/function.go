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

// FunctionDriver reconciles pipeline functions. Functions are matched by
// name and data source, since one name may be reused across data sources,
// and addressed by the service-assigned id.
type FunctionDriver struct {
	client AppSyncClient
	limits platform.Limits
}

// NewFunctionDriver creates a function driver.
func NewFunctionDriver(client AppSyncClient, limits platform.Limits) *FunctionDriver {
	return &FunctionDriver{client: client, limits: limits}
}

type functionStrategy struct{}

func (functionStrategy) DesiredKey(d config.Function) string { return d.Key() }

func (functionStrategy) DeployedKey(r types.FunctionConfiguration) string {
	return deref(r.Name) + "/" + deref(r.DataSourceName)
}

func (functionStrategy) DesiredFields(d config.Function) platform.Fields {
	f := platform.Fields{
		"name":           d.Name,
		"dataSourceName": d.DataSource,
		"request":        d.Request,
		"response":       d.Response,
	}
	if d.Description != nil {
		f["description"] = *d.Description
	}
	return f
}

func (functionStrategy) DeployedFields(r types.FunctionConfiguration) platform.Fields {
	return platform.Fields{
		"name":           deref(r.Name),
		"dataSourceName": deref(r.DataSourceName),
		"request":        deref(r.RequestMappingTemplate),
		"response":       deref(r.ResponseMappingTemplate),
		"description":    deref(r.Description),
	}
}

// Reconcile creates or updates every desired function and returns records
// carrying the function ids.
func (d *FunctionDriver) Reconcile(ctx context.Context, obs platform.Observer, apiID string, desired []config.Function) ([]platform.FunctionRecord, error) {
	deployed, err := d.list(ctx, apiID)
	if err != nil {
		return nil, err
	}

	steps := platform.PlanItems[config.Function, types.FunctionConfiguration](functionStrategy{}, desired, deployed)
	records := make([]platform.FunctionRecord, len(steps))
	err = platform.ForEach(ctx, d.limits, len(steps), func(ctx context.Context, i int) error {
		step := steps[i]
		fn := step.Desired
		current := step.Deployed

		switch step.Action {
		case platform.ActionCreate:
			out, err := d.client.CreateFunction(ctx, &appsync.CreateFunctionInput{
				ApiId:                   awsv2.String(apiID),
				Name:                    awsv2.String(fn.Name),
				DataSourceName:          awsv2.String(fn.DataSource),
				Description:             fn.Description,
				FunctionVersion:         stringOrNil(fn.FunctionVersion),
				RequestMappingTemplate:  awsv2.String(fn.Request),
				ResponseMappingTemplate: awsv2.String(fn.Response),
			})
			if err != nil {
				return fmt.Errorf("appsync: create function %q: %w", step.Key, err)
			}
			if out.FunctionConfiguration != nil {
				current = *out.FunctionConfiguration
			}
		case platform.ActionUpdate:
			out, err := d.client.UpdateFunction(ctx, &appsync.UpdateFunctionInput{
				ApiId:                   awsv2.String(apiID),
				FunctionId:              current.FunctionId,
				Name:                    awsv2.String(fn.Name),
				DataSourceName:          awsv2.String(fn.DataSource),
				Description:             fn.Description,
				FunctionVersion:         stringOrNil(fn.FunctionVersion),
				RequestMappingTemplate:  awsv2.String(fn.Request),
				ResponseMappingTemplate: awsv2.String(fn.Response),
			})
			if err != nil {
				return fmt.Errorf("appsync: update function %q: %w", step.Key, err)
			}
			if out.FunctionConfiguration != nil {
				current = *out.FunctionConfiguration
			}
		}
		obs.Applied(ctx, platform.KindFunction, step.Key, step.Action, step.Diffs)

		records[i] = platform.FunctionRecord{
			Name:       fn.Name,
			DataSource: fn.DataSource,
			ID:         deref(current.FunctionId),
			ARN:        deref(current.FunctionArn),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RemoveObsolete deletes functions whose (name, data source) is no longer
// declared. Recorded ids come first, so a function found both in state and
// in the listing is deleted once.
func (d *FunctionDriver) RemoveObsolete(ctx context.Context, obs platform.Observer, apiID string, desired []config.Function, prior []platform.FunctionRef) error {
	deployed, err := d.list(ctx, apiID)
	if err != nil {
		return err
	}
	live := make([]platform.FunctionRef, 0, len(deployed))
	for _, r := range deployed {
		live = append(live, platform.FunctionRef{
			Name:       deref(r.Name),
			DataSource: deref(r.DataSourceName),
			FunctionID: deref(r.FunctionId),
		})
	}

	keep := platform.KeySet(desired, config.Function.Key)
	var candidates []platform.FunctionRef
	for _, list := range [][]platform.FunctionRef{prior, live} {
		for _, ref := range list {
			if !keep[ref.Name+"/"+ref.DataSource] && ref.FunctionID != "" {
				candidates = append(candidates, ref)
			}
		}
	}
	return d.delete(ctx, obs, apiID, platform.Obsolete(nil, functionID, candidates))
}

// RemoveRecorded deletes only the functions recorded in prior, by id.
func (d *FunctionDriver) RemoveRecorded(ctx context.Context, obs platform.Observer, apiID string, prior []platform.FunctionRef) error {
	var recorded []platform.FunctionRef
	for _, ref := range prior {
		if ref.FunctionID != "" {
			recorded = append(recorded, ref)
		}
	}
	return d.delete(ctx, obs, apiID, platform.Obsolete(nil, functionID, recorded))
}

func functionID(r platform.FunctionRef) string { return r.FunctionID }

func (d *FunctionDriver) delete(ctx context.Context, obs platform.Observer, apiID string, refs []platform.FunctionRef) error {
	return platform.ForEach(ctx, d.limits, len(refs), func(ctx context.Context, i int) error {
		ref := refs[i]
		key := ref.Name + "/" + ref.DataSource
		_, err := d.client.DeleteFunction(ctx, &appsync.DeleteFunctionInput{
			ApiId:      awsv2.String(apiID),
			FunctionId: awsv2.String(ref.FunctionID),
		})
		if err != nil {
			if platform.IsNotFound(err) {
				obs.Notice(ctx, "function already removed", "key", key, "function_id", ref.FunctionID)
				return nil
			}
			return fmt.Errorf("appsync: delete function %q: %w", key, err)
		}
		obs.Applied(ctx, platform.KindFunction, key, platform.ActionDelete, nil)
		return nil
	})
}

func (d *FunctionDriver) list(ctx context.Context, apiID string) ([]types.FunctionConfiguration, error) {
	items, err := platform.ListAll(ctx, func(ctx context.Context, token *string) ([]types.FunctionConfiguration, *string, error) {
		out, err := d.client.ListFunctions(ctx, &appsync.ListFunctionsInput{
			ApiId:     awsv2.String(apiID),
			NextToken: token,
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Functions, out.NextToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("appsync: list functions: %w", err)
	}
	return items, nil
}

var _ platform.FunctionDriver = (*FunctionDriver)(nil)

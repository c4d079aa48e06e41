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

// DataSourceDriver reconciles AppSync data sources.
type DataSourceDriver struct {
	client AppSyncClient
	limits platform.Limits
}

// NewDataSourceDriver creates a data source driver.
func NewDataSourceDriver(client AppSyncClient, limits platform.Limits) *DataSourceDriver {
	return &DataSourceDriver{client: client, limits: limits}
}

// dataSourceItem is a declared data source with its settings decoded and
// region resolved.
type dataSourceItem struct {
	cfg      config.DataSource
	settings config.Settings
	region   string
}

type dataSourceStrategy struct{}

func (dataSourceStrategy) DesiredKey(d dataSourceItem) string { return d.cfg.Key() }

func (dataSourceStrategy) DeployedKey(r types.DataSource) string {
	return deref(r.Name) + "/" + string(r.Type)
}

func (dataSourceStrategy) DesiredFields(d dataSourceItem) platform.Fields {
	p := dataSourcePayloadFor(d)
	f := platform.Fields{
		"serviceRoleArn": optional(d.cfg.ServiceRoleArn),
		"config":         payloadShape(p),
	}
	if d.cfg.Description != nil {
		f["description"] = *d.cfg.Description
	}
	return f
}

func (dataSourceStrategy) DeployedFields(r types.DataSource) platform.Fields {
	p := dataSourcePayload{
		lambda:        r.LambdaConfig,
		dynamodb:      r.DynamodbConfig,
		elasticsearch: r.ElasticsearchConfig,
		http:          r.HttpConfig,
		relational:    r.RelationalDatabaseConfig,
	}
	return platform.Fields{
		"description":    deref(r.Description),
		"serviceRoleArn": deref(r.ServiceRoleArn),
		"config":         payloadShape(p),
	}
}

// Reconcile creates or updates every desired data source. A deployed source
// whose name matches but whose type differs is retyped in place, since the
// service keys data sources by name alone.
func (d *DataSourceDriver) Reconcile(ctx context.Context, obs platform.Observer, apiID, region string, desired []config.DataSource) ([]platform.DataSourceRecord, error) {
	items := make([]dataSourceItem, len(desired))
	for i, ds := range desired {
		settings, err := ds.Settings()
		if err != nil {
			return nil, err
		}
		items[i] = dataSourceItem{cfg: ds, settings: settings, region: firstNonEmpty(settings.Region(), region)}
	}

	deployed, err := d.list(ctx, apiID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]bool, len(deployed))
	for _, r := range deployed {
		byName[deref(r.Name)] = true
	}

	steps := platform.PlanItems[dataSourceItem, types.DataSource](dataSourceStrategy{}, items, deployed)
	records := make([]platform.DataSourceRecord, len(steps))
	err = platform.ForEach(ctx, d.limits, len(steps), func(ctx context.Context, i int) error {
		step := steps[i]
		item := step.Desired
		action := step.Action
		if action == platform.ActionCreate && byName[item.cfg.Name] {
			action = platform.ActionUpdate
		}

		arn := deref(step.Deployed.DataSourceArn)
		switch action {
		case platform.ActionCreate:
			out, err := d.create(ctx, apiID, item)
			if err != nil {
				return err
			}
			arn = deref(out.DataSourceArn)
		case platform.ActionUpdate:
			out, err := d.update(ctx, apiID, item)
			if err != nil {
				return err
			}
			arn = deref(out.DataSourceArn)
		}
		obs.Applied(ctx, platform.KindDataSource, step.Key, action, step.Diffs)

		records[i] = platform.DataSourceRecord{
			Name:           item.cfg.Name,
			Type:           item.cfg.Type,
			ARN:            arn,
			ServiceRoleArn: item.cfg.ServiceRoleArn,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RemoveObsolete deletes every data source, recorded or deployed, whose name
// is no longer declared.
func (d *DataSourceDriver) RemoveObsolete(ctx context.Context, obs platform.Observer, apiID string, desired []config.DataSource, prior []platform.DataSourceRef) error {
	deployed, err := d.list(ctx, apiID)
	if err != nil {
		return err
	}
	live := make([]platform.DataSourceRef, 0, len(deployed))
	for _, r := range deployed {
		live = append(live, platform.DataSourceRef{Name: deref(r.Name), Type: string(r.Type)})
	}

	keep := platform.KeySet(desired, func(ds config.DataSource) string { return ds.Name })
	return d.delete(ctx, obs, apiID, platform.Obsolete(keep, dataSourceName, prior, live))
}

// RemoveRecorded deletes only the data sources recorded in prior. Nothing is
// listed, so sources created by someone else survive.
func (d *DataSourceDriver) RemoveRecorded(ctx context.Context, obs platform.Observer, apiID string, prior []platform.DataSourceRef) error {
	return d.delete(ctx, obs, apiID, platform.Obsolete(nil, dataSourceName, prior))
}

func dataSourceName(r platform.DataSourceRef) string { return r.Name }

func (d *DataSourceDriver) delete(ctx context.Context, obs platform.Observer, apiID string, refs []platform.DataSourceRef) error {
	return platform.ForEach(ctx, d.limits, len(refs), func(ctx context.Context, i int) error {
		ref := refs[i]
		key := ref.Name + "/" + ref.Type
		_, err := d.client.DeleteDataSource(ctx, &appsync.DeleteDataSourceInput{
			ApiId: awsv2.String(apiID),
			Name:  awsv2.String(ref.Name),
		})
		if err != nil {
			if platform.IsNotFound(err) {
				obs.Notice(ctx, "data source already removed", "key", key)
				return nil
			}
			return fmt.Errorf("appsync: delete data source %q: %w", ref.Name, err)
		}
		obs.Applied(ctx, platform.KindDataSource, key, platform.ActionDelete, nil)
		return nil
	})
}

func (d *DataSourceDriver) list(ctx context.Context, apiID string) ([]types.DataSource, error) {
	items, err := platform.ListAll(ctx, func(ctx context.Context, token *string) ([]types.DataSource, *string, error) {
		out, err := d.client.ListDataSources(ctx, &appsync.ListDataSourcesInput{
			ApiId:     awsv2.String(apiID),
			NextToken: token,
		})
		if err != nil {
			return nil, nil, err
		}
		return out.DataSources, out.NextToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("appsync: list data sources: %w", err)
	}
	return items, nil
}

func (d *DataSourceDriver) create(ctx context.Context, apiID string, item dataSourceItem) (*types.DataSource, error) {
	p := dataSourcePayloadFor(item)
	out, err := d.client.CreateDataSource(ctx, &appsync.CreateDataSourceInput{
		ApiId:                    awsv2.String(apiID),
		Name:                     awsv2.String(item.cfg.Name),
		Type:                     types.DataSourceType(item.cfg.Type),
		Description:              item.cfg.Description,
		ServiceRoleArn:           stringOrNil(item.cfg.ServiceRoleArn),
		LambdaConfig:             p.lambda,
		DynamodbConfig:           p.dynamodb,
		ElasticsearchConfig:      p.elasticsearch,
		HttpConfig:               p.http,
		RelationalDatabaseConfig: p.relational,
	})
	if err != nil {
		return nil, fmt.Errorf("appsync: create data source %q: %w", item.cfg.Name, err)
	}
	if out.DataSource == nil {
		return &types.DataSource{}, nil
	}
	return out.DataSource, nil
}

func (d *DataSourceDriver) update(ctx context.Context, apiID string, item dataSourceItem) (*types.DataSource, error) {
	p := dataSourcePayloadFor(item)
	out, err := d.client.UpdateDataSource(ctx, &appsync.UpdateDataSourceInput{
		ApiId:                    awsv2.String(apiID),
		Name:                     awsv2.String(item.cfg.Name),
		Type:                     types.DataSourceType(item.cfg.Type),
		Description:              item.cfg.Description,
		ServiceRoleArn:           stringOrNil(item.cfg.ServiceRoleArn),
		LambdaConfig:             p.lambda,
		DynamodbConfig:           p.dynamodb,
		ElasticsearchConfig:      p.elasticsearch,
		HttpConfig:               p.http,
		RelationalDatabaseConfig: p.relational,
	})
	if err != nil {
		return nil, fmt.Errorf("appsync: update data source %q: %w", item.cfg.Name, err)
	}
	if out.DataSource == nil {
		return &types.DataSource{}, nil
	}
	return out.DataSource, nil
}

// dataSourcePayload holds the one type-specific sub-config of a data source.
type dataSourcePayload struct {
	lambda        *types.LambdaDataSourceConfig
	dynamodb      *types.DynamodbDataSourceConfig
	elasticsearch *types.ElasticsearchDataSourceConfig
	http          *types.HttpDataSourceConfig
	relational    *types.RelationalDatabaseDataSourceConfig
}

func dataSourcePayloadFor(item dataSourceItem) dataSourcePayload {
	var p dataSourcePayload
	s := item.settings
	switch {
	case s.Lambda != nil:
		p.lambda = &types.LambdaDataSourceConfig{LambdaFunctionArn: awsv2.String(s.Lambda.FunctionArn)}
	case s.DynamoDB != nil:
		p.dynamodb = &types.DynamodbDataSourceConfig{
			AwsRegion:            awsv2.String(item.region),
			TableName:            awsv2.String(s.DynamoDB.TableName),
			UseCallerCredentials: s.DynamoDB.UseCallerCredentials,
		}
	case s.Elasticsearch != nil:
		p.elasticsearch = &types.ElasticsearchDataSourceConfig{
			AwsRegion: awsv2.String(item.region),
			Endpoint:  awsv2.String(s.Elasticsearch.Endpoint),
		}
	case s.HTTP != nil:
		p.http = &types.HttpDataSourceConfig{Endpoint: awsv2.String(s.HTTP.Endpoint)}
	case s.RelationalDB != nil:
		p.relational = &types.RelationalDatabaseDataSourceConfig{
			RelationalDatabaseSourceType: types.RelationalDatabaseSourceType("RDS_HTTP_ENDPOINT"),
			RdsHttpEndpointConfig: &types.RdsHttpEndpointConfig{
				AwsRegion:           awsv2.String(item.region),
				AwsSecretStoreArn:   awsv2.String(s.RelationalDB.AwsSecretStoreArn),
				DbClusterIdentifier: awsv2.String(s.RelationalDB.DBClusterIdentifier),
				DatabaseName:        stringOrNil(s.RelationalDB.DatabaseName),
				Schema:              stringOrNil(s.RelationalDB.Schema),
			},
		}
	}
	return p
}

// payloadShape flattens a payload into comparable plain values. Only the
// settings the configuration can express are included.
func payloadShape(p dataSourcePayload) map[string]any {
	switch {
	case p.lambda != nil:
		return map[string]any{"lambdaFunctionArn": deref(p.lambda.LambdaFunctionArn)}
	case p.dynamodb != nil:
		return map[string]any{
			"awsRegion":            deref(p.dynamodb.AwsRegion),
			"tableName":            deref(p.dynamodb.TableName),
			"useCallerCredentials": p.dynamodb.UseCallerCredentials,
		}
	case p.elasticsearch != nil:
		return map[string]any{
			"awsRegion": deref(p.elasticsearch.AwsRegion),
			"endpoint":  deref(p.elasticsearch.Endpoint),
		}
	case p.http != nil:
		return map[string]any{"endpoint": deref(p.http.Endpoint)}
	case p.relational != nil && p.relational.RdsHttpEndpointConfig != nil:
		c := p.relational.RdsHttpEndpointConfig
		return map[string]any{
			"awsRegion":           deref(c.AwsRegion),
			"awsSecretStoreArn":   deref(c.AwsSecretStoreArn),
			"dbClusterIdentifier": deref(c.DbClusterIdentifier),
			"databaseName":        deref(c.DatabaseName),
			"schema":              deref(c.Schema),
		}
	}
	return nil
}

var _ platform.DataSourceDriver = (*DataSourceDriver)(nil)

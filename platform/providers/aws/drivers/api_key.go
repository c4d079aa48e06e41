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

// millisThreshold separates epoch seconds from epoch milliseconds. Epoch
// seconds stay below it until the year 5138.
const millisThreshold = 100_000_000_000

// NormalizeExpiry converts an expiry given in epoch seconds or epoch
// milliseconds to epoch seconds.
func NormalizeExpiry(v int64) int64 {
	if v >= millisThreshold {
		return v / 1000
	}
	return v
}

// hourFloor rounds an expiry down to the hour, which is how the service
// stores it.
func hourFloor(v int64) int64 {
	return v - v%3600
}

// APIKeyDriver reconciles API keys. The service gives keys no name, so a
// declared key is correlated either through the id recorded in state or
// through the key description.
type APIKeyDriver struct {
	client   AppSyncClient
	limits   platform.Limits
	matching string
}

// NewAPIKeyDriver creates an API key driver. matching is config.MatchByID
// or config.MatchByName.
func NewAPIKeyDriver(client AppSyncClient, limits platform.Limits, matching string) *APIKeyDriver {
	if matching == "" {
		matching = config.MatchByID
	}
	return &APIKeyDriver{client: client, limits: limits, matching: matching}
}

type apiKeyItem struct {
	cfg         config.APIKey
	id          string
	description string
	expires     int64
}

type apiKeyStrategy struct {
	byName bool
}

func (s apiKeyStrategy) DesiredKey(d apiKeyItem) string {
	if s.byName {
		return "description:" + d.description
	}
	if d.id == "" {
		// Never matches a deployed key.
		return "unrecorded:" + d.cfg.Name
	}
	return "id:" + d.id
}

func (s apiKeyStrategy) DeployedKey(r types.ApiKey) string {
	if s.byName {
		return "description:" + deref(r.Description)
	}
	return "id:" + deref(r.Id)
}

func (apiKeyStrategy) DesiredFields(d apiKeyItem) platform.Fields {
	f := platform.Fields{"description": d.description}
	if d.expires != 0 {
		f["expires"] = d.expires
	}
	return f
}

func (apiKeyStrategy) DeployedFields(r types.ApiKey) platform.Fields {
	return platform.Fields{
		"description": deref(r.Description),
		"expires":     r.Expires,
	}
}

// Reconcile creates or updates every declared key.
func (d *APIKeyDriver) Reconcile(ctx context.Context, obs platform.Observer, apiID string, desired []config.APIKey, prior []platform.APIKeyRef) ([]platform.APIKeyRecord, error) {
	recorded := &platform.Snapshot{APIKeys: prior}
	items := make([]apiKeyItem, len(desired))
	for i, k := range desired {
		id, _ := recorded.APIKeyID(k.Name)
		desc := k.Name
		if k.Description != nil {
			desc = *k.Description
		}
		items[i] = apiKeyItem{cfg: k, id: id, description: desc, expires: hourFloor(NormalizeExpiry(k.Expires))}
	}

	deployed, err := d.list(ctx, apiID)
	if err != nil {
		return nil, err
	}

	strategy := apiKeyStrategy{byName: d.matching == config.MatchByName}
	steps := platform.PlanItems[apiKeyItem, types.ApiKey](strategy, items, deployed)
	records := make([]platform.APIKeyRecord, len(steps))
	err = platform.ForEach(ctx, d.limits, len(steps), func(ctx context.Context, i int) error {
		step := steps[i]
		item := step.Desired
		current := step.Deployed

		switch step.Action {
		case platform.ActionCreate:
			out, err := d.client.CreateApiKey(ctx, &appsync.CreateApiKeyInput{
				ApiId:       awsv2.String(apiID),
				Description: awsv2.String(item.description),
				Expires:     item.expires,
			})
			if err != nil {
				return fmt.Errorf("appsync: create api key %q: %w", item.cfg.Name, err)
			}
			if out.ApiKey != nil {
				current = *out.ApiKey
			}
		case platform.ActionUpdate:
			expires := item.expires
			if expires == 0 {
				expires = current.Expires
			}
			out, err := d.client.UpdateApiKey(ctx, &appsync.UpdateApiKeyInput{
				ApiId:       awsv2.String(apiID),
				Id:          current.Id,
				Description: awsv2.String(item.description),
				Expires:     expires,
			})
			if err != nil {
				return fmt.Errorf("appsync: update api key %q: %w", item.cfg.Name, err)
			}
			if out.ApiKey != nil {
				current = *out.ApiKey
			}
		}
		obs.Applied(ctx, platform.KindAPIKey, item.cfg.Name, step.Action, step.Diffs)

		records[i] = platform.APIKeyRecord{
			Name:    item.cfg.Name,
			ID:      deref(current.Id),
			Expires: current.Expires,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RemoveObsolete deletes every recorded or deployed key whose id is not in
// keep.
func (d *APIKeyDriver) RemoveObsolete(ctx context.Context, obs platform.Observer, apiID string, keep []platform.APIKeyRecord, prior []platform.APIKeyRef) error {
	deployed, err := d.list(ctx, apiID)
	if err != nil {
		return err
	}
	live := make([]platform.APIKeyRef, 0, len(deployed))
	for _, r := range deployed {
		live = append(live, platform.APIKeyRef{Name: deref(r.Description), ID: deref(r.Id)})
	}

	kept := platform.KeySet(keep, func(r platform.APIKeyRecord) string { return r.ID })
	return d.delete(ctx, obs, apiID, platform.Obsolete(kept, apiKeyID, prior, live))
}

// RemoveRecorded deletes only the keys recorded in prior.
func (d *APIKeyDriver) RemoveRecorded(ctx context.Context, obs platform.Observer, apiID string, prior []platform.APIKeyRef) error {
	return d.delete(ctx, obs, apiID, platform.Obsolete(nil, apiKeyID, prior))
}

func apiKeyID(r platform.APIKeyRef) string { return r.ID }

func (d *APIKeyDriver) delete(ctx context.Context, obs platform.Observer, apiID string, refs []platform.APIKeyRef) error {
	return platform.ForEach(ctx, d.limits, len(refs), func(ctx context.Context, i int) error {
		ref := refs[i]
		if ref.ID == "" {
			return nil
		}
		_, err := d.client.DeleteApiKey(ctx, &appsync.DeleteApiKeyInput{
			ApiId: awsv2.String(apiID),
			Id:    awsv2.String(ref.ID),
		})
		if err != nil {
			if platform.IsNotFound(err) {
				obs.Notice(ctx, "api key already removed", "name", ref.Name, "id", ref.ID)
				return nil
			}
			return fmt.Errorf("appsync: delete api key %q: %w", ref.Name, err)
		}
		obs.Applied(ctx, platform.KindAPIKey, ref.Name, platform.ActionDelete, nil)
		return nil
	})
}

func (d *APIKeyDriver) list(ctx context.Context, apiID string) ([]types.ApiKey, error) {
	items, err := platform.ListAll(ctx, func(ctx context.Context, token *string) ([]types.ApiKey, *string, error) {
		out, err := d.client.ListApiKeys(ctx, &appsync.ListApiKeysInput{
			ApiId:     awsv2.String(apiID),
			NextToken: token,
		})
		if err != nil {
			return nil, nil, err
		}
		return out.ApiKeys, out.NextToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("appsync: list api keys: %w", err)
	}
	return items, nil
}

var _ platform.APIKeyDriver = (*APIKeyDriver)(nil)

package drivers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/appsync/types"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

// Schema creation states as seen by the driver.
const (
	SchemaSubmitted     = "SUBMITTED"
	SchemaSucceeded     = "SUCCEEDED"
	SchemaFailed        = "FAILED"
	SchemaNotApplicable = "NOT_APPLICABLE"
)

// SchemaState maps a service schema status onto the driver's states.
// Unknown statuses are treated as still in progress.
func SchemaState(status types.SchemaStatus) string {
	switch string(status) {
	case "ACTIVE", "SUCCESS":
		return SchemaSucceeded
	case "FAILED":
		return SchemaFailed
	case "NOT_APPLICABLE":
		return SchemaNotApplicable
	default:
		return SchemaSubmitted
	}
}

// Checksum returns the hex SHA-256 of the schema text.
func Checksum(sdl string) string {
	sum := sha256.Sum256([]byte(sdl))
	return hex.EncodeToString(sum[:])
}

// SchemaDriver submits the schema and waits for it to be applied.
type SchemaDriver struct {
	client   AppSyncClient
	interval time.Duration
}

// NewSchemaDriver creates a schema driver polling at interval.
func NewSchemaDriver(client AppSyncClient, interval time.Duration) *SchemaDriver {
	if interval <= 0 {
		interval = time.Second
	}
	return &SchemaDriver{client: client, interval: interval}
}

// Apply submits sdl unless its checksum matches priorChecksum, then polls
// until the service reports a terminal status.
func (d *SchemaDriver) Apply(ctx context.Context, obs platform.Observer, apiID, sdl, priorChecksum string) (string, error) {
	sum := Checksum(sdl)
	if sum == priorChecksum {
		obs.Applied(ctx, platform.KindSchema, apiID, platform.ActionIgnore, nil)
		return sum, nil
	}

	out, err := d.client.StartSchemaCreation(ctx, &appsync.StartSchemaCreationInput{
		ApiId:      awsv2.String(apiID),
		Definition: []byte(sdl),
	})
	if err != nil {
		return "", fmt.Errorf("appsync: start schema creation: %w", err)
	}

	status, details := out.Status, ""
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		obs.Polled(ctx, platform.KindSchema, string(status))
		switch SchemaState(status) {
		case SchemaSucceeded:
			action := platform.ActionUpdate
			if priorChecksum == "" {
				action = platform.ActionCreate
			}
			obs.Applied(ctx, platform.KindSchema, apiID, action, []platform.DiffEntry{
				{Path: "checksum", OldValue: priorChecksum, NewValue: sum},
			})
			return sum, nil
		case SchemaNotApplicable:
			obs.Notice(ctx, "schema creation not applicable", "api_id", apiID)
			return sum, nil
		case SchemaFailed:
			return "", &platform.SchemaCreationError{APIID: apiID, Status: string(status), Details: details}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		st, err := d.client.GetSchemaCreationStatus(ctx, &appsync.GetSchemaCreationStatusInput{
			ApiId: awsv2.String(apiID),
		})
		if err != nil {
			return "", fmt.Errorf("appsync: get schema creation status: %w", err)
		}
		status, details = st.Status, deref(st.Details)
	}
}

var _ platform.SchemaDriver = (*SchemaDriver)(nil)

package drivers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appsync"
	"github.com/aws/aws-sdk-go-v2/service/appsync/types"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

const testSDL = "type Query { posts: [String] }"

// pollLog records the statuses reported while polling.
type pollLog struct {
	platform.NopObserver

	mu       sync.Mutex
	statuses []string
	notices  []string
}

func (p *pollLog) Polled(_ context.Context, _ platform.Kind, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
}

func (p *pollLog) Notice(_ context.Context, msg string, _ ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, msg)
}

func TestSchemaState(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"ACTIVE", SchemaSucceeded},
		{"SUCCESS", SchemaSucceeded},
		{"FAILED", SchemaFailed},
		{"NOT_APPLICABLE", SchemaNotApplicable},
		{"PROCESSING", SchemaSubmitted},
		{"DELETING", SchemaSubmitted},
		{"", SchemaSubmitted},
	}
	for _, tt := range tests {
		if got := SchemaState(types.SchemaStatus(tt.status)); got != tt.want {
			t.Errorf("SchemaState(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum(testSDL)
	if len(a) != 64 {
		t.Fatalf("checksum length = %d, want 64", len(a))
	}
	if a != Checksum(testSDL) {
		t.Error("checksum is not deterministic")
	}
	if a == Checksum(testSDL+"\n") {
		t.Error("different schema text produced the same checksum")
	}
}

func TestSchemaDriver_SkipsUnchanged(t *testing.T) {
	client := &mockAppSyncClient{}
	tally := platform.NewTally()
	d := NewSchemaDriver(client, time.Millisecond)

	sum, err := d.Apply(context.Background(), tally, "api-1", testSDL, Checksum(testSDL))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum != Checksum(testSDL) {
		t.Errorf("checksum = %q", sum)
	}
	if len(client.calls) != 0 {
		t.Errorf("remote calls made: %v", client.calls)
	}
	if tally.Count(platform.KindSchema, platform.ActionIgnore) != 1 {
		t.Errorf("counts = %v", tally.Counts())
	}
}

func TestSchemaDriver_PollsUntilSuccess(t *testing.T) {
	var polls int
	client := &mockAppSyncClient{
		startSchemaFunc: func(_ context.Context, params *appsync.StartSchemaCreationInput, _ ...func(*appsync.Options)) (*appsync.StartSchemaCreationOutput, error) {
			if string(params.Definition) != testSDL {
				t.Errorf("definition = %q", params.Definition)
			}
			return &appsync.StartSchemaCreationOutput{Status: types.SchemaStatus("PROCESSING")}, nil
		},
		schemaStatusFunc: func(context.Context, *appsync.GetSchemaCreationStatusInput, ...func(*appsync.Options)) (*appsync.GetSchemaCreationStatusOutput, error) {
			polls++
			if polls < 3 {
				return &appsync.GetSchemaCreationStatusOutput{Status: types.SchemaStatus("PROCESSING")}, nil
			}
			return &appsync.GetSchemaCreationStatusOutput{Status: types.SchemaStatus("ACTIVE")}, nil
		},
	}
	obs := &pollLog{}
	d := NewSchemaDriver(client, time.Millisecond)

	sum, err := d.Apply(context.Background(), obs, "api-1", testSDL, "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum != Checksum(testSDL) {
		t.Errorf("checksum = %q", sum)
	}
	if polls != 3 {
		t.Errorf("status polls = %d, want 3", polls)
	}
	want := []string{"PROCESSING", "PROCESSING", "PROCESSING", "ACTIVE"}
	if len(obs.statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", obs.statuses, want)
	}
	for i := range want {
		if obs.statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %q, want %q", i, obs.statuses[i], want[i])
		}
	}
}

func TestSchemaDriver_Failed(t *testing.T) {
	client := &mockAppSyncClient{
		schemaStatusFunc: func(context.Context, *appsync.GetSchemaCreationStatusInput, ...func(*appsync.Options)) (*appsync.GetSchemaCreationStatusOutput, error) {
			return &appsync.GetSchemaCreationStatusOutput{
				Status:  types.SchemaStatus("FAILED"),
				Details: awsv2.String("Syntax Error on line 1"),
			}, nil
		},
	}
	d := NewSchemaDriver(client, time.Millisecond)

	_, err := d.Apply(context.Background(), platform.NopObserver{}, "api-1", testSDL, "old")
	var schemaErr *platform.SchemaCreationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want *SchemaCreationError", err)
	}
	if schemaErr.APIID != "api-1" || schemaErr.Details != "Syntax Error on line 1" {
		t.Errorf("error = %+v", schemaErr)
	}
}

func TestSchemaDriver_NotApplicable(t *testing.T) {
	client := &mockAppSyncClient{
		startSchemaFunc: func(context.Context, *appsync.StartSchemaCreationInput, ...func(*appsync.Options)) (*appsync.StartSchemaCreationOutput, error) {
			return &appsync.StartSchemaCreationOutput{Status: types.SchemaStatus("NOT_APPLICABLE")}, nil
		},
	}
	obs := &pollLog{}
	d := NewSchemaDriver(client, time.Millisecond)

	if _, err := d.Apply(context.Background(), obs, "api-1", testSDL, ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if client.count("GetSchemaCreationStatus") != 0 {
		t.Error("terminal status should not be polled")
	}
	if len(obs.notices) != 1 {
		t.Errorf("notices = %v, want one", obs.notices)
	}
}

func TestSchemaDriver_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &mockAppSyncClient{
		schemaStatusFunc: func(context.Context, *appsync.GetSchemaCreationStatusInput, ...func(*appsync.Options)) (*appsync.GetSchemaCreationStatusOutput, error) {
			cancel()
			return &appsync.GetSchemaCreationStatusOutput{Status: types.SchemaStatus("PROCESSING")}, nil
		},
	}
	d := NewSchemaDriver(client, time.Millisecond)

	_, err := d.Apply(ctx, platform.NopObserver{}, "api-1", testSDL, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestSchemaDriver_StartError(t *testing.T) {
	client := &mockAppSyncClient{
		startSchemaFunc: func(context.Context, *appsync.StartSchemaCreationInput, ...func(*appsync.Options)) (*appsync.StartSchemaCreationOutput, error) {
			return nil, &types.BadRequestException{Message: awsv2.String("bad schema")}
		},
	}
	d := NewSchemaDriver(client, time.Millisecond)

	if _, err := d.Apply(context.Background(), platform.NopObserver{}, "api-1", testSDL, ""); err == nil {
		t.Fatal("expected an error")
	}
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
)

const testConfig = `
name: blog
dataSources:
  - name: posts
    type: NONE
resolvers:
  - type: Query
    field: posts
    dataSource: posts
    request: '{"version": "2017-02-28"}'
    response: '$util.toJson($context.result)'
apiKeys:
  - default
`

// writeConfig writes the config and its schema into a fresh directory.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte("type Query { posts: [String] }\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "appsync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// stubDrivers deploy into memory and count remote writes.
type stubDrivers struct {
	apiDeletes int
}

func (s *stubDrivers) Reconcile(_ context.Context, obs platform.Observer, spec *config.Spec, prior *platform.Snapshot) (platform.APIRecord, error) {
	action := platform.ActionCreate
	if prior.APIID != "" {
		action = platform.ActionIgnore
	}
	obs.Applied(context.Background(), platform.KindAPI, spec.Name, action, nil)
	return platform.APIRecord{
		ID:    "api-1",
		Name:  spec.Name,
		URIs:  map[string]string{"GRAPHQL": "https://api-1.appsync-api.us-east-1.amazonaws.com/graphql"},
		Owned: true,
	}, nil
}

func (s *stubDrivers) Delete(context.Context, platform.Observer, string) error {
	s.apiDeletes++
	return nil
}

type stubRole struct{}

func (stubRole) Provision(context.Context, platform.Observer, *config.Spec, *platform.RoleRecord) (*platform.RoleRecord, error) {
	return nil, nil
}
func (stubRole) Remove(context.Context, platform.Observer, platform.RoleRecord) error { return nil }

type stubDataSources struct{}

func (stubDataSources) Reconcile(_ context.Context, _ platform.Observer, _, _ string, desired []config.DataSource) ([]platform.DataSourceRecord, error) {
	out := make([]platform.DataSourceRecord, len(desired))
	for i, d := range desired {
		out[i] = platform.DataSourceRecord{Name: d.Name, Type: d.Type}
	}
	return out, nil
}
func (stubDataSources) RemoveObsolete(context.Context, platform.Observer, string, []config.DataSource, []platform.DataSourceRef) error {
	return nil
}

func (stubDataSources) RemoveRecorded(context.Context, platform.Observer, string, []platform.DataSourceRef) error {
	return nil
}

type stubSchema struct{}

func (stubSchema) Apply(_ context.Context, _ platform.Observer, _, _, _ string) (string, error) {
	return "checksum", nil
}

type stubResolvers struct{}

func (stubResolvers) Reconcile(_ context.Context, _ platform.Observer, _ string, desired []config.Resolver, _ []platform.DataSourceRecord) ([]platform.ResolverRecord, error) {
	out := make([]platform.ResolverRecord, len(desired))
	for i, r := range desired {
		out[i] = platform.ResolverRecord{Type: r.Type, Field: r.Field, DataSource: r.DataSource}
	}
	return out, nil
}
func (stubResolvers) RemoveObsolete(context.Context, platform.Observer, string, []config.Resolver, []platform.ResolverRef) error {
	return nil
}

func (stubResolvers) RemoveRecorded(context.Context, platform.Observer, string, []platform.ResolverRef) error {
	return nil
}

type stubFunctions struct{}

func (stubFunctions) Reconcile(context.Context, platform.Observer, string, []config.Function) ([]platform.FunctionRecord, error) {
	return nil, nil
}
func (stubFunctions) RemoveObsolete(context.Context, platform.Observer, string, []config.Function, []platform.FunctionRef) error {
	return nil
}

func (stubFunctions) RemoveRecorded(context.Context, platform.Observer, string, []platform.FunctionRef) error {
	return nil
}

type stubKeys struct{}

func (stubKeys) Reconcile(_ context.Context, _ platform.Observer, _ string, desired []config.APIKey, _ []platform.APIKeyRef) ([]platform.APIKeyRecord, error) {
	out := make([]platform.APIKeyRecord, len(desired))
	for i, k := range desired {
		out[i] = platform.APIKeyRecord{Name: k.Name, ID: "da2-" + k.Name}
	}
	return out, nil
}
func (stubKeys) RemoveObsolete(context.Context, platform.Observer, string, []platform.APIKeyRecord, []platform.APIKeyRef) error {
	return nil
}

func (stubKeys) RemoveRecorded(context.Context, platform.Observer, string, []platform.APIKeyRef) error {
	return nil
}

func (s *stubDrivers) drivers() platform.Drivers {
	return platform.Drivers{
		API:         s,
		Role:        stubRole{},
		DataSources: stubDataSources{},
		Schema:      stubSchema{},
		Resolvers:   stubResolvers{},
		Functions:   stubFunctions{},
		APIKeys:     stubKeys{},
	}
}

// run executes the CLI with stub drivers and returns stdout.
func run(t *testing.T, stub *stubDrivers, args ...string) (string, error) {
	t.Helper()
	c := &cli{}
	c.newDrivers = func(context.Context, *config.Spec) (platform.Drivers, error) {
		return stub.drivers(), nil
	}
	root := c.rootCmd()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestDeploy_ThenShowState(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	stateDir := t.TempDir()
	stub := &stubDrivers{}

	out, err := run(t, stub, "deploy", "-c", cfg, "--state", stateDir)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	for _, want := range []string{"blog deployed", "api-1", "GRAPHQL: https://", "api key default: da2-default"} {
		if !strings.Contains(out, want) {
			t.Errorf("deploy output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, stub, "state", "show", "-c", cfg, "--state", stateDir)
	if err != nil {
		t.Fatalf("state show: %v", err)
	}
	for _, want := range []string{"apiId: api-1", "isApiCreator: true", "field: posts", "schemaChecksum: checksum"} {
		if !strings.Contains(out, want) {
			t.Errorf("state output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, stub, "state", "show", "-o", "json", "-c", cfg, "--state", stateDir)
	if err != nil {
		t.Fatalf("state show json: %v", err)
	}
	if !strings.Contains(out, `"apiId": "api-1"`) {
		t.Errorf("json output = %s", out)
	}
}

func TestDeploy_WritesMetrics(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	metrics := filepath.Join(t.TempDir(), "appsyncctl.prom")

	if _, err := run(t, &stubDrivers{}, "deploy", "-c", cfg, "--state", t.TempDir(), "--metrics-file", metrics); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), `appsyncctl_actions_total{action="create",kind="graphql_api"} 1`) {
		t.Errorf("metrics = %s", data)
	}
}

func TestDeploy_InvalidConfigMakesNoCalls(t *testing.T) {
	cfg := writeConfig(t, "region: us-east-1\n")
	called := false
	c := &cli{newDrivers: func(context.Context, *config.Spec) (platform.Drivers, error) {
		called = true
		return (&stubDrivers{}).drivers(), nil
	}}
	root := c.rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"deploy", "-c", cfg, "--state", t.TempDir()})
	if err := root.Execute(); err == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Error("drivers were built for an invalid configuration")
	}
}

func TestRemove(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	stateDir := t.TempDir()
	stub := &stubDrivers{}

	if _, err := run(t, stub, "deploy", "-c", cfg, "--state", stateDir); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	out, err := run(t, stub, "remove", "-c", cfg, "--state", stateDir)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(out, "blog removed") {
		t.Errorf("remove output = %q", out)
	}
	if stub.apiDeletes != 1 {
		t.Errorf("api deletes = %d, want 1", stub.apiDeletes)
	}

	out, err = run(t, stub, "state", "show", "-c", cfg, "--state", stateDir)
	if err != nil {
		t.Fatalf("state show: %v", err)
	}
	if !strings.Contains(out, "no state recorded for blog") {
		t.Errorf("state after remove = %q", out)
	}
}

func TestValidate(t *testing.T) {
	cfg := writeConfig(t, testConfig)
	out, err := run(t, &stubDrivers{}, "validate", "-c", cfg)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "blog is valid: 1 data sources, 1 resolvers, 0 functions, 1 api keys") {
		t.Errorf("validate output = %q", out)
	}

	bad := writeConfig(t, `
name: blog
dataSources:
  - {name: posts, type: NONE}
  - {name: posts, type: NONE}
`)
	if _, err := run(t, &stubDrivers{}, "validate", "-c", bad); err == nil {
		t.Error("expected duplicate data source error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("log output = %s", buf.String())
	}

	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		state   string
		wantErr bool
	}{
		{name: "directory", state: dir},
		{name: "file scheme", state: "file://" + dir},
		{name: "sqlite", state: "sqlite://" + filepath.Join(dir, "state.db")},
		{name: "sqlite short form", state: "sqlite::memory:"},
		{name: "redis", state: "redis://" + mr.Addr() + "/0"},
		{name: "unknown scheme", state: "ftp://host/state", wantErr: true},
		{name: "s3 without bucket", state: "s3:///prefix", wantErr: true},
		{name: "dynamodb without table", state: "dynamodb://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cli{flags: rootFlags{state: tt.state}}
			store, closeStore, err := c.openStore(context.Background(), "us-east-1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer func() { _ = closeStore() }()

			snap, err := store.Load(context.Background(), "blog")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !snap.Empty() {
				t.Errorf("fresh store loaded %+v", snap)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, &stubDrivers{}, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version output = %q", out)
	}
}

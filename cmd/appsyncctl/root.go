package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/observability/tracing"
	"github.com/GoCodeAlone/appsyncctl/platform"
	"github.com/GoCodeAlone/appsyncctl/platform/providers/aws"
)

type rootFlags struct {
	configPath string
	state      string
	timeout    time.Duration

	logLevel  string
	logFormat string

	metricsFile  string
	otlpEndpoint string
	otlpInsecure bool

	region        string
	profile       string
	endpoint      string
	assumeRoleArn string
}

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	flags  rootFlags
	logger *slog.Logger

	// newDrivers builds the drivers for a run. Tests replace it to avoid
	// AWS calls.
	newDrivers func(ctx context.Context, spec *config.Spec) (platform.Drivers, error)
	// provider is created on first use and reused by the state store.
	provider *aws.AWSProvider
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	c.newDrivers = c.awsDrivers
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "appsyncctl",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Reconcile an AWS AppSync GraphQL API with a declared configuration.",
		Long: `appsyncctl converges an AppSync GraphQL API to a YAML configuration.

- appsyncctl deploy -c appsync.yaml [--watch]
- appsyncctl remove -c appsync.yaml
- appsyncctl validate -c appsync.yaml
- appsyncctl state show -c appsync.yaml
`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), c.flags.logLevel, c.flags.logFormat)
			if err != nil {
				return err
			}
			c.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&c.flags.configPath, "config", "c", "appsync.yaml", "Path to the API configuration file.")
	f.StringVar(&c.flags.state, "state", ".appsyncctl", "State location: a directory, file://, sqlite://, postgres://, redis://, s3://bucket/prefix or dynamodb://table.")
	f.DurationVar(&c.flags.timeout, "timeout", 30*time.Minute, "Give up on a run after this long.")
	f.StringVar(&c.flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	f.StringVar(&c.flags.logFormat, "log-format", "text", "Log format: text or json.")
	f.StringVar(&c.flags.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file.")
	f.StringVar(&c.flags.otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP/HTTP endpoint, e.g. localhost:4318.")
	f.BoolVar(&c.flags.otlpInsecure, "otlp-insecure", true, "Disable TLS for the OTLP exporter.")
	f.StringVar(&c.flags.region, "region", "", "AWS region; overrides the configuration's region.")
	f.StringVar(&c.flags.profile, "profile", "", "AWS shared config profile.")
	f.StringVar(&c.flags.endpoint, "endpoint-url", "", "Override the AWS endpoint, e.g. for LocalStack.")
	f.StringVar(&c.flags.assumeRoleArn, "assume-role", "", "Assume this IAM role for every AWS call.")

	root.AddCommand(
		newDeployCmd(c),
		newRemoveCmd(c),
		newValidateCmd(c),
		newStateCmd(c),
		newVersionCmd(),
	)
	root.DisableAutoGenTag = true
	return root
}

// newLogger builds the slog logger selected by the level and format flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}

// loadSpec reads and defaults the configuration file.
func (c *cli) loadSpec() (*config.Spec, error) {
	spec, err := config.LoadFromFile(c.flags.configPath)
	if err != nil {
		return nil, err
	}
	if c.flags.region != "" {
		spec.Region = c.flags.region
	}
	return spec, nil
}

// awsProvider returns the provider for region, creating it once.
func (c *cli) awsProvider(ctx context.Context, region string) (*aws.AWSProvider, error) {
	if c.provider != nil {
		return c.provider, nil
	}
	p, err := aws.NewProvider(ctx, aws.ClientOptions{
		Region:        region,
		Profile:       c.flags.profile,
		Endpoint:      c.flags.endpoint,
		AssumeRoleArn: c.flags.assumeRoleArn,
		SessionName:   "appsyncctl-" + version,
	})
	if err != nil {
		return nil, err
	}
	c.provider = p
	return p, nil
}

func (c *cli) awsDrivers(ctx context.Context, spec *config.Spec) (platform.Drivers, error) {
	p, err := c.awsProvider(ctx, spec.Region)
	if err != nil {
		return platform.Drivers{}, err
	}
	return p.Drivers(spec.Options), nil
}

// runEnv is the per-run plumbing: observers, tracing and the state store.
type runEnv struct {
	store    platform.StateStore
	closers  []func() error
	metrics  *platform.MetricsObserver
	tracing  *tracing.Provider
	observer platform.Observer
}

func (c *cli) newRunEnv(ctx context.Context, spec *config.Spec) (*runEnv, error) {
	env := &runEnv{}
	store, closeStore, err := c.openStore(ctx, spec.Region)
	if err != nil {
		return nil, err
	}
	env.store = store
	env.closers = append(env.closers, closeStore)

	observers := platform.Observers{platform.NewLogObserver(c.logger)}
	if c.flags.metricsFile != "" {
		env.metrics = platform.NewMetricsObserver("")
		observers = append(observers, env.metrics)
	}
	env.observer = observers

	if c.flags.otlpEndpoint != "" {
		tcfg := tracing.DefaultConfig()
		tcfg.Endpoint = c.flags.otlpEndpoint
		tcfg.Insecure = c.flags.otlpInsecure
		tcfg.ServiceVersion = version
		tp, err := tracing.NewProvider(ctx, tcfg)
		if err != nil {
			env.close(c.logger)
			return nil, fmt.Errorf("tracing: %w", err)
		}
		env.tracing = tp
	}
	return env, nil
}

func (c *cli) orchestrator(drivers platform.Drivers, env *runEnv) *platform.Orchestrator {
	return platform.NewOrchestrator(drivers, env.store,
		platform.WithLogger(c.logger),
		platform.WithObserver(env.observer),
		platform.WithTracer(env.tracing.PipelineTracer()),
	)
}

// flush writes metrics and exports spans collected so far.
func (e *runEnv) flush(ctx context.Context, path string, logger *slog.Logger) {
	if e.metrics != nil && path != "" {
		if err := e.metrics.WriteTextfile(path); err != nil {
			logger.Warn("write metrics", "path", path, "error", err)
		}
	}
	if e.tracing != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.tracing.Shutdown(sctx); err != nil {
			logger.Warn("flush traces", "error", err)
		}
		e.tracing = nil
	}
}

func (e *runEnv) close(logger *slog.Logger) {
	for _, fn := range e.closers {
		if err := fn(); err != nil {
			logger.Warn("close state store", "error", err)
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the appsyncctl version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

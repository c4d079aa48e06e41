package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/platform"
)

type deployFlags struct {
	watch bool
}

func newDeployCmd(c *cli) *cobra.Command {
	var flags deployFlags
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the API and prune what is no longer declared.",
		Example: `  appsyncctl deploy -c appsync.yaml

  # Keep running and redeploy whenever the configuration or a template changes
  appsyncctl deploy -c appsync.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := c.deployOnce(ctx, cmd.OutOrStdout()); err != nil {
				if !flags.watch {
					return err
				}
				c.logger.Error("deploy failed", "error", err)
			}
			if !flags.watch {
				return nil
			}
			return c.watch(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "Redeploy on every change to the configuration directory.")
	return cmd
}

func (c *cli) deployOnce(ctx context.Context, out io.Writer) error {
	spec, err := c.loadSpec()
	if err != nil {
		return err
	}
	return c.deploy(ctx, spec, out)
}

func (c *cli) deploy(ctx context.Context, spec *config.Spec, out io.Writer) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.flags.timeout)
	defer cancel()

	env, err := c.newRunEnv(ctx, spec)
	if err != nil {
		return err
	}
	defer env.close(c.logger)
	defer env.flush(ctx, c.flags.metricsFile, c.logger)

	drivers, err := c.newDrivers(ctx, spec)
	if err != nil {
		return err
	}
	result, err := c.orchestrator(drivers, env).Deploy(ctx, spec)
	if err != nil {
		return err
	}
	printResult(out, spec.Name, result)
	return nil
}

// watch redeploys on every configuration change until ctx is done.
func (c *cli) watch(ctx context.Context, out io.Writer) error {
	changes := make(chan config.ChangeEvent, 1)
	source := config.NewFileSource(c.flags.configPath)
	w := config.NewConfigWatcher(source, func(ev config.ChangeEvent) {
		select {
		case changes <- ev:
		default:
			// A redeploy is already queued and will read the latest file.
		}
	}, config.WithWatchLogger(c.logger))
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	c.logger.Info("watching for changes", "config", source.Path())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-changes:
			spec := ev.Spec
			if c.flags.region != "" {
				spec.Region = c.flags.region
			}
			if err := c.deploy(ctx, spec, out); err != nil {
				c.logger.Error("deploy failed", "error", err)
			}
		}
	}
}

func printResult(w io.Writer, name string, r *platform.Result) {
	fmt.Fprintf(w, "✔ %s deployed (api %s, run %s, %s)\n", name, r.API.ID, r.RunID, r.Duration.Round(time.Millisecond))
	keys := make([]string, 0, len(r.API.URIs))
	for k := range r.API.URIs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, r.API.URIs[k])
	}
	for _, k := range r.APIKeys {
		fmt.Fprintf(w, "  api key %s: %s\n", k.Name, k.ID)
	}

	kinds := make([]string, 0, len(r.Actions))
	for k := range r.Actions {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		byAction := r.Actions[platform.Kind(k)]
		var parts []string
		for _, a := range []platform.Action{platform.ActionCreate, platform.ActionUpdate, platform.ActionDelete, platform.ActionIgnore} {
			if n := byAction[a]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, a))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(w, "  %s: %v\n", k, parts)
		}
	}
	if !r.Changed() {
		fmt.Fprintln(w, "  no changes")
	}
}

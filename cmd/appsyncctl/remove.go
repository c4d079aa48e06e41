package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Tear down everything the stored state records for the API.",
		Long: `Remove deletes the API when appsyncctl created it. An adopted API is left
standing and only the children recorded in state are deleted. The
provisioned service role is removed last, then the state is forgotten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := c.loadSpec()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.flags.timeout)
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
			if err := c.orchestrator(drivers, env).Remove(ctx, spec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✔ %s removed\n", spec.Name)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/appsyncctl/config"
)

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and load every referenced file, without calling AWS.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := c.loadSpec()
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
			}
			resolved, err := config.Resolve(spec, config.NewLoader(spec.BasePath))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✔ %s is valid: %d data sources, %d resolvers, %d functions, %d api keys\n",
				resolved.Name, len(resolved.DataSources), len(resolved.Resolvers), len(resolved.Functions), len(resolved.APIKeys))
			return nil
		},
	}
}

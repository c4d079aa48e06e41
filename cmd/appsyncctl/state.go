package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

func newStateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the stored snapshot of the last successful run.",
	}

	var output string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := c.loadSpec()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.flags.timeout)
			defer cancel()

			store, closeStore, err := c.openStore(ctx, spec.Region)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			snap, err := store.Load(ctx, spec.Name)
			if err != nil {
				return err
			}
			if snap.Empty() {
				fmt.Fprintf(cmd.OutOrStdout(), "no state recorded for %s\n", spec.Name)
				return nil
			}

			var data []byte
			switch output {
			case "json":
				data, err = platform.EncodeSnapshot(snap)
				data = append(data, '\n')
			case "yaml":
				data, err = yaml.Marshal(snap)
			default:
				return fmt.Errorf("invalid --output %q: want yaml or json", output)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json.")

	cmd.AddCommand(show)
	return cmd
}

// Command appsyncctl converges an AWS AppSync GraphQL API, with its data
// sources, schema, resolvers, pipeline functions and API keys, to a
// declared YAML configuration.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err) //nolint:gosec // G705: CLI error output
		os.Exit(1)
	}
}

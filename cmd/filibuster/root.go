// Package main is the entry point for the filibuster CLI.
package main

import (
	"github.com/spf13/cobra"
)

// defaultConfigFile is the config file name searched for in the current
// directory and in the user's config directory when --config is not given.
const defaultConfigFile = "filibuster.yaml"

// cfgFile holds the --config flag value, shared across every subcommand.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "filibuster",
	Short: "Fault-injection testing for distributed microservices",
	Long: `filibuster drives fault-injection test executions against instrumented
services: it enumerates possible faults from a catalog, runs a functional
test once per fault combination, and reports the first execution that
fails as a reproducible counterexample.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
}

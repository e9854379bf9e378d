package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fieldbase",
	Short: "Workspace record store with composable query endpoints",
	Long: `Fieldbase stores schema-validated records in workspace-scoped
collections and serves saved queries (compositions) over HTTP.

Quick start:
  fieldbase serve      # Start the server
  fieldbase validate   # Validate configuration`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "fieldbase.yaml", "config file path")
}

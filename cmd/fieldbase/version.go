package main

import (
	"fmt"

	"github.com/fieldbase/fieldbase/bootstrap"
	"github.com/spf13/cobra"
)

var (
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fieldbase %s (commit: %s, built: %s)\n", bootstrap.Version, commit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

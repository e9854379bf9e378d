package main

import (
	"fmt"
	"os"

	"github.com/fieldbase/fieldbase/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration valid")
		fmt.Printf("  Server:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Database:  %s\n", cfg.Database.DSN)
		fmt.Printf("  Max limit: %d\n", cfg.Query.MaxLimit)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

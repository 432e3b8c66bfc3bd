package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/paymock/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate a paymock configuration file without starting the server.

Checks the YAML syntax, the storage and clock settings, and the chaos
section against the same rules the runtime /v1/_sim/chaos endpoint applies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Listen:   %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Storage:  %s\n", cfg.Database.Driver)
		fmt.Printf("  Clock:    %s\n", cfg.Clock.Mode)
		fmt.Printf("  Metrics:  %v\n", cfg.Metrics.Enabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

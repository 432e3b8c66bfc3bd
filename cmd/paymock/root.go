package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "paymock",
	Short: "Stateful mock payment processor with chaos injection",
	Long: `Paymock is a self-hosted mock of a payment processor API.

It serves a Stripe-like REST API backed by a virtual clock, a subscription
billing engine, signed webhook delivery, and a chaos coordinator that can
inject payment declines, API faults, and event reordering on demand.

Quick start:
  paymock serve     # Start the mock server
  paymock validate  # Validate a configuration file

Point your integration tests at http://localhost:8420 and drive the
simulation through the /v1/_sim endpoints.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "paymock.yaml", "config file path")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/paymock/bootstrap"
	"github.com/artpar/paymock/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock payment processor server",
	Long: `Start the paymock server.

The server will:
  - Load configuration from paymock.yaml (or --config)
  - Or fall back to PAYMOCK_* environment variables and defaults
  - Serve the Stripe-like API on the configured port
  - Expose the simulation control surface under /v1/_sim

Environment variables (for Docker deployments):
  PAYMOCK_SERVER_PORT       - Server port (default: 8420)
  PAYMOCK_DATABASE_DRIVER   - Storage driver: memory or sqlite (default: memory)
  PAYMOCK_DATABASE_DSN      - SQLite path (default: paymock.db)
  PAYMOCK_CLOCK_MODE        - Clock mode: real, accelerated or manual
  PAYMOCK_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  paymock serve
  paymock serve --config /etc/paymock/config.yaml
  paymock serve --hot-reload=false

  # Docker (env vars only):
  PAYMOCK_DATABASE_DRIVER=sqlite paymock serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if !hasConfigFile {
		fmt.Println("No config file found, running with environment variables and defaults")
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Hot reload only works with a config file to watch.
	if hasConfigFile && hotReload {
		holder, err := config.NewHolder(cfgFile, app.Logger)
		if err != nil {
			return fmt.Errorf("error watching config: %w", err)
		}
		app.AttachConfigWatcher(holder)
		if err := holder.WatchFile(); err != nil {
			app.Logger.Warn().Err(err).Msg("config file watch unavailable, SIGHUP reload still works")
		}
		holder.WatchSignals()
	}

	// Run (blocks until shutdown)
	return app.Run()
}

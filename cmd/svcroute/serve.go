package main

import (
	"fmt"
	"os"

	"github.com/artpar/svcroute/bootstrap"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the svcroute gateway.

The server will:
  - Load configuration from svcroute.yaml (or --config)
  - Deploy the configured services
  - Deploy services stored by the admin API (when the database is enabled)
  - Reload the configuration on file changes and SIGHUP

Environment overrides:
  SVCROUTE_SERVER_PORT      - Server port (default: 8080)
  SVCROUTE_DATABASE_DSN     - Database path (default: svcroute.db)
  SVCROUTE_LOG_LEVEL        - Log level: debug, info, warn, error
  SVCROUTE_ADMIN_TOKEN      - Bearer token for the admin API

Examples:
  svcroute serve
  svcroute serve --config /etc/svcroute/config.yaml
  svcroute serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		return fmt.Errorf("config file not found: %s", cfgFile)
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
		Watch:      hotReload,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/svcroute/adapters/clock"
	"github.com/artpar/svcroute/adapters/idgen"
	"github.com/artpar/svcroute/app"
	"github.com/artpar/svcroute/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "svcroute",
	Short: "Request router for declaratively configured HTTP services",
	Long: `svcroute routes HTTP requests to services declared in YAML.

Each service owns a base path and a set of resources described by
URI templates, methods, media types and CORS rules.

Quick start:
  svcroute validate   # Check the configuration
  svcroute routes     # List services and resources
  svcroute serve      # Start the gateway

Debugging:
  svcroute resolve GET /orders/items/42`,
	SilenceUsage: true,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "svcroute.yaml", "config file path")
}

// loadRegistry deploys the configured services into an in-memory registry
// without starting anything.
func loadRegistry(ctx context.Context, path string) (*config.Config, *app.Registry, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	reg := app.NewRegistry(clock.System{}, idgen.TimeOrdered{}, zerolog.Nop(), app.RegistryConfig{})
	deployments := app.NewDeploymentService(reg, nil, zerolog.Nop())
	return cfg, reg, deployments.SyncConfig(ctx, cfg.Definitions())
}

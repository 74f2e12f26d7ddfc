package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/svcroute/adapters/sqlite"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the svcroute configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Every service registers (base paths, URI templates, media types,
    parameter bindings)
  - Database is writable (optional)

Examples:
  svcroute validate
  svcroute validate --config /etc/svcroute/config.yaml`,
	RunE: runValidate,
}

var (
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, reg, err := loadRegistry(cmd.Context(), cfgFile)
	if cfg == nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return err
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	if err != nil {
		fmt.Printf("  %s Services register\n", crossMark)
		return fmt.Errorf("service error: %w", err)
	}
	fmt.Printf("  %s Services registered: %d\n", checkMark, len(reg.Services()))
	for _, svc := range reg.Services() {
		fmt.Printf("      %s -> %s (%d resources)\n", svc.BasePath, svc.Name, len(svc.Resources))
	}

	// Optional: check database
	if validateCheckDatabase && cfg.Database.Enabled {
		if err := checkDatabaseWritable(cmd.Context(), cfg.Database.DSN); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabaseWritable(ctx context.Context, dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.MigrateContext(ctx)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

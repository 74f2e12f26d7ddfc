package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/svcroute/adapters/http/admin"
	"github.com/artpar/svcroute/ports"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve METHOD PATH",
	Short: "Show which resource would serve a request",
	Long: `Resolve a request against the configured services without starting
the server. PATH may carry a query string.

Examples:
  svcroute resolve GET /orders/items/42
  svcroute resolve GET '/orders/items?page=2'`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	_, reg, err := loadRegistry(cmd.Context(), cfgFile)
	if err != nil {
		return err
	}

	method, target := args[0], args[1]
	res, err := admin.Resolve(reg, method, target)
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("no service deployed for %s", target)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Service:   %s\n", res.Service)
	fmt.Printf("Base path: %s\n", res.BasePath)
	fmt.Printf("Resource:  %s\n", res.Resource)
	fmt.Printf("Sub-path:  %s\n", res.SubPath)
	if len(res.Args) > 0 {
		keys := make([]string, 0, len(res.Args))
		for k := range res.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+res.Args[k])
		}
		fmt.Printf("Args:      %s\n", strings.Join(pairs, " "))
	}
	return nil
}

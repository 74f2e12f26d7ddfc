package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List configured services and resources",
	Long: `List every resource of the configured services in resolution order,
most specific base path first.

Examples:
  svcroute routes
  svcroute routes --config /etc/svcroute/config.yaml`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	_, reg, err := loadRegistry(cmd.Context(), cfgFile)
	if err != nil {
		return err
	}

	services := reg.Services()
	if len(services) == 0 {
		fmt.Println("No services configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BASE PATH\tSERVICE\tRESOURCE\tPATH\tMETHODS\tHANDLER")
	fmt.Fprintln(w, "---------\t-------\t--------\t----\t-------\t-------")
	for _, svc := range services {
		for _, res := range svc.Resources {
			methods := "*"
			if res.Methods != nil {
				methods = strings.Join(res.Methods, ",")
			}
			handler := res.Target.Kind
			if handler == "" {
				handler = "echo"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				svc.BasePath, svc.Name, res.Name, res.Path, methods, handler)
		}
	}
	return w.Flush()
}

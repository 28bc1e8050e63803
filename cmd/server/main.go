package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "bakery-pos",
		Short:   "Point of sale back-end for a bakery",
		Version: version,
	}

	var port string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}
	serveCmd.Flags().StringVar(&port, "port", "", "HTTP port, overrides PORT")

	var seed bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema and seed an empty catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), seed)
		},
	}
	migrateCmd.Flags().BoolVar(&seed, "seed", true, "Load the seed catalog when the catalog is empty")

	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

/*
main.go - Application entry point

PURPOSE:
  Command-line interface for the price quote service.

COMMANDS:
  serve              Run the HTTP API (migrates the schema up first)
  import <file>...   Import JSON files and print each run's counts
  migrate            Apply or roll back schema migrations

CONFIGURATION:
  Every command accepts -c/--config. See config/config.go for the file
  search path and the QUOTES_ environment variables.

EXAMPLES:
  # Run against the default SQLite file
  ./server serve

  # Run against Postgres
  QUOTES_DATABASE_DRIVER=postgres QUOTES_DATABASE_URL=postgres://app@db/quotes ./server serve

  # Import a file once and exit
  ./server import ./data/cepea-2024.json

  # Roll back the last migration
  ./server migrate --direction down --steps 1

SEE ALSO:
  - api/server.go: Router configuration
  - quotes/importer.go: Import pipeline
  - store/migrate.go: Schema migrations
*/
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:          "server",
		Short:        "Commodity price import and query service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")

	root.AddCommand(serveCMD(&cfgPath), importCMD(&cfgPath), migrateCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

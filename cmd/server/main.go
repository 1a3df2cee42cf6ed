package main

import (
	"os"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// main runs the journal API CLI. `serve` starts the HTTP server and
// `migrate` only brings the database schema up to date and `reconcile`
// audits account balances.
func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Trading journal API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (defaults to ./app.env when present)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newReconcileCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		zlog.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

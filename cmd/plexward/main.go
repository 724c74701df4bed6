package main

import (
	"os"

	"github.com/spf13/cobra"

	"plexward/internal/interfaces/cli/migrate"
	"plexward/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plexward",
		Short: "Plexward - Plex donor access reconciliation",
		Long:  `Plexward keeps Plex server shares in sync with PayPal and Stripe subscriptions: webhook ingestion, invite provisioning, revocation sweeps and an operator API.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

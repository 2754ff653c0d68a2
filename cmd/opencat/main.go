package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opencat-io/opencat/internal/interfaces/cli/apps"
	"github.com/opencat-io/opencat/internal/interfaces/cli/migrate"
	"github.com/opencat-io/opencat/internal/interfaces/cli/server"
	"github.com/opencat-io/opencat/internal/interfaces/cli/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "opencat",
		Short: "opencat - in-app purchase entitlement and webhook delivery engine",
		Long:  `opencat ingests store transactions, resolves subscriber entitlements, and delivers signed webhook events with retries and dead-lettering.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		worker.NewCommand(),
		migrate.NewCommand(),
		apps.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

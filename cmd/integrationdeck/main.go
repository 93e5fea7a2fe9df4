package main

import (
	"fmt"
	"os"

	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	closeLog := setupLogging()
	defer closeLog()

	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("ignoring .env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	if err := newRootCommand(cfg).Execute(); err != nil {
		closeLog()
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "integrationdeck",
		Short:        "integrationdeck connects your organization to Notion, Airtable and HubSpot and browses their data.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newConnectCommand(cfg))
	root.AddCommand(newLoadCommand(cfg))
	root.AddCommand(newProvidersCommand(cfg))
	root.AddCommand(newHistoryCommand(cfg))
	root.AddCommand(newVersionCommand())

	return root
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/providers"
	"github.com/spf13/cobra"
)

func newProvidersCommand(cfg config.Config) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:     "providers",
		Aliases: []string{"integrations"},
		Short:   "List supported integrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSLUG\tWINDOW")
			for _, p := range providers.AllProviders() {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\n", p.Name, p.Slug, p.WindowWidth, p.WindowHeight)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !check {
				return nil
			}
			client := newBackendClient(cfg)
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("backend %s unreachable: %w", client.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nbackend %s: ok\n", client.BaseURL())
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "also check that the backend answers")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCommand(cfg config.Config) *cobra.Command {
	var (
		provider  string
		limit     int
		pruneDays int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded connect and load activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cfg.History.Enabled {
				return errors.New("activity history is disabled in settings")
			}
			store, err := history.OpenStore(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			if pruneDays > 0 {
				n, err := store.Prune(cmd.Context(), time.Duration(pruneDays)*24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "pruned %d entries\n", n)
			}

			entries, err := store.List(cmd.Context(), history.Filter{Provider: provider, Limit: limit})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tINTEGRATION\tUSER\tORG\tOUTCOME\tDETAIL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.OccurredAt.Local().Format("2006-01-02 15:04:05"),
					e.Kind,
					e.Provider,
					e.User,
					e.Org,
					e.Outcome,
					entryDetail(e),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only show this integration")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "delete entries older than this many days first")
	return cmd
}

func entryDetail(e history.Entry) string {
	switch {
	case e.Kind == core.ActivityLoad && e.Outcome == core.OutcomeOK:
		return fmt.Sprintf("%d records", e.RecordCount)
	case e.Message != "":
		return e.Message
	case e.CredentialFingerprint != "":
		return "credentials " + e.CredentialFingerprint
	}
	return "-"
}

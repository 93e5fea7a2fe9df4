package main

import (
	"fmt"

	"github.com/janekbaraniewski/integrationdeck/internal/appupdate"
	"github.com/janekbaraniewski/integrationdeck/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "integrationdeck %s\n", version.String())
			if !check {
				return nil
			}

			result, err := appupdate.Checker{}.Check(cmd.Context(), version.Version, "")
			if err != nil {
				return err
			}
			switch {
			case result.CurrentVersion == "":
				fmt.Fprintln(out, "development build, update check skipped")
			case result.UpdateAvailable:
				fmt.Fprintf(out, "update available: %s\n  %s\n", result.LatestVersion, result.UpgradeHint)
			default:
				fmt.Fprintln(out, "up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}

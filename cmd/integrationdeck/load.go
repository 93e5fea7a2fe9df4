package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/spf13/cobra"
)

func newLoadCommand(cfg config.Config) *cobra.Command {
	var (
		flags     handshakeFlags
		credsFile string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "load <integration>",
		Short: "Load records from an integration",
		Long:  "Load records from an integration, connecting first unless --credentials-file points at a bundle saved by `connect --out`.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newCLISession(cmd, cfg, flags)
			defer s.Close()

			if credsFile != "" {
				bundle, err := config.LoadBundleFrom(credsFile)
				if err != nil {
					return err
				}
				if _, err := s.ctrl.Select(args[0]); err != nil {
					return err
				}
				if _, err := s.ctrl.AdoptCredentials(bundle.Raw, bundle.Provider); err != nil {
					return err
				}
			} else if _, err := s.connect(cmd.Context(), args[0]); err != nil {
				return err
			}

			records, err := s.ctrl.Panel().Load(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeRecords(cmd.OutOrStdout(), records)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&credsFile, "credentials-file", "", "use credentials saved by `connect --out`")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func writeRecords(out io.Writer, records []core.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No data")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := make([]string, len(core.RecordColumns))
	for i, c := range core.RecordColumns {
		header[i] = strings.ToUpper(c)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range records {
		fmt.Fprintln(w, strings.Join(r.Cells(), "\t"))
	}
	return w.Flush()
}

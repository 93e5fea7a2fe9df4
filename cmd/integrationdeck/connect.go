package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/history"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/janekbaraniewski/integrationdeck/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// handshakeFlags are shared by every command that may run the OAuth flow.
type handshakeFlags struct {
	user      string
	org       string
	noBrowser bool
}

func (f *handshakeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "user id (default from settings)")
	cmd.Flags().StringVar(&f.org, "org", "", "organization id (default from settings)")
	cmd.Flags().BoolVar(&f.noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
}

func (f handshakeFlags) identity(cfg config.Config) core.Identity {
	user, org := cfg.Identity.User, cfg.Identity.Org
	if strings.TrimSpace(f.user) != "" {
		user = f.user
	}
	if strings.TrimSpace(f.org) != "" {
		org = f.org
	}
	return core.NewIdentity(user, org)
}

// cliSession is a controller wired for terminal use: the consent window is
// confirmed by pressing enter on stdin.
type cliSession struct {
	ctrl  *session.Controller
	store *history.Store
}

func newCLISession(cmd *cobra.Command, cfg config.Config, flags handshakeFlags) *cliSession {
	errOut := cmd.ErrOrStderr()
	in := bufio.NewReader(cmd.InOrStdin())

	s := &cliSession{store: openHistory(cfg)}
	var record func(core.Activity)
	if s.store != nil {
		record = s.store.Recorder(cmd.Context())
	}

	opener := popup.NewBrowserOpener(cfg.Connect.OpenBrowser && !flags.noBrowser, errOut, func(win *popup.ManualWindow) {
		fmt.Fprintln(errOut, "Press enter once you have finished authorizing.")
		go waitForEnter(in, win)
	})

	s.ctrl = session.NewController(session.Options{
		API:          newBackendClient(cfg),
		Opener:       opener,
		PollInterval: pollInterval(cfg),
		Identity:     flags.identity(cfg),
		OnActivity:   record,
	})
	return s
}

func waitForEnter(in *bufio.Reader, win *popup.ManualWindow) {
	_, _ = in.ReadString('\n')
	win.Close()
}

func (s *cliSession) Close() error {
	return s.store.Close()
}

// connect selects the integration and runs the OAuth flow.
func (s *cliSession) connect(ctx context.Context, integration string) (core.CredentialBundle, error) {
	if _, err := s.ctrl.Select(integration); err != nil {
		return core.CredentialBundle{}, err
	}
	bundle, err := s.ctrl.Connect(ctx)
	if err != nil {
		return core.CredentialBundle{}, err
	}
	id := s.ctrl.Identity()
	if err := config.SaveIdentity(id.User, id.Org); err != nil {
		log.Warn().Err(err).Str("component", "config").Msg("identity not saved")
	}
	return bundle, nil
}

func newConnectCommand(cfg config.Config) *cobra.Command {
	var (
		flags handshakeFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "connect <integration>",
		Short: "Run the OAuth flow for an integration and print the credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newCLISession(cmd, cfg, flags)
			defer s.Close()

			bundle, err := s.connect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out != "" {
				if err := config.SaveBundleTo(out, bundle); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s Connected, credentials saved to %s\n", bundle.Provider, out)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), bundle)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the credentials to this file (mode 0600) instead of stdout")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

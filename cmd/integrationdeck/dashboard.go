package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/janekbaraniewski/integrationdeck/internal/appupdate"
	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/connect"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/janekbaraniewski/integrationdeck/internal/session"
	"github.com/janekbaraniewski/integrationdeck/internal/tui"
	"github.com/janekbaraniewski/integrationdeck/internal/version"
	"github.com/rs/zerolog/log"
)

const startupUpdateCheckTimeout = 1200 * time.Millisecond

func runDashboard(parent context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	client := newBackendClient(cfg)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	var program *tea.Program
	// Callbacks may fire inside Update (disconnect, reselect), where a
	// blocking Send would deadlock the event loop.
	send := func(msg tea.Msg) {
		if program != nil {
			go program.Send(msg)
		}
	}

	var record func(core.Activity)
	if store != nil {
		record = store.Recorder(ctx)
	}

	ctrl := session.NewController(session.Options{
		API:          client,
		Opener:       popup.NewBrowserOpener(cfg.Connect.OpenBrowser, nil, func(win *popup.ManualWindow) { send(tui.PopupOpenedMsg{Window: win}) }),
		PollInterval: pollInterval(cfg),
		Identity:     core.NewIdentity(cfg.Identity.User, cfg.Identity.Org),
		OnActivity: func(a core.Activity) {
			if record != nil {
				record(a)
			}
			send(tui.ActivityMsg{Activity: a})
		},
		OnTransition: func(t connect.Transition) { send(tui.TransitionMsg(t)) },
	})

	opts := tui.Options{
		Session:   ctrl,
		NoticeTTL: time.Duration(cfg.UI.NotificationSeconds) * time.Second,
		OnConnected: func(id core.Identity) error {
			return config.SaveIdentity(id.User, id.Org)
		},
		OnConfig: func(c config.Config) {
			client.Reconfigure(c.Backend.BaseURL, requestTimeout(c))
			log.Info().Str("component", "config").Str("backend", client.BaseURL()).Msg("settings reloaded")
		},
	}
	if store != nil {
		opts.History = store
	}

	program = tea.NewProgram(tui.NewModel(ctx, opts), tea.WithAltScreen())

	if err := config.Watch(ctx, config.ConfigPath(), func(c config.Config) {
		send(tui.ConfigReloadedMsg{Config: c})
	}); err != nil {
		log.Debug().Err(err).Str("component", "config").Msg("settings watch disabled")
	}

	go runStartupUpdateCheck(ctx, appupdate.Checker{Timeout: startupUpdateCheckTimeout}, version.Version, func(msg tui.AppUpdateMsg) {
		program.Send(msg)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
			program.Quit()
		case <-ctx.Done():
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

type updateChecker interface {
	Check(ctx context.Context, currentVersion, executablePath string) (appupdate.Result, error)
}

func runStartupUpdateCheck(ctx context.Context, checker updateChecker, currentVersion string, send func(tui.AppUpdateMsg)) {
	result, err := checker.Check(ctx, currentVersion, "")
	if err != nil {
		log.Debug().Err(err).Str("component", "appupdate").Msg("update check failed")
		return
	}
	if !result.UpdateAvailable || send == nil {
		return
	}
	send(tui.AppUpdateMsg{
		CurrentVersion: result.CurrentVersion,
		LatestVersion:  result.LatestVersion,
		UpgradeHint:    result.UpgradeHint,
	})
}

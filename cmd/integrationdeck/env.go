package main

import (
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/backend"
	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/history"
	"github.com/rs/zerolog/log"
)

func newBackendClient(cfg config.Config) *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL, requestTimeout(cfg))
}

func requestTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.Backend.RequestTimeoutSeconds) * time.Second
}

func pollInterval(cfg config.Config) time.Duration {
	return time.Duration(cfg.Connect.PollIntervalMillis) * time.Millisecond
}

// openHistory returns nil when history is off or the database cannot be
// opened; activity is then simply not recorded.
func openHistory(cfg config.Config) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.OpenStore(cfg.HistoryPath())
	if err != nil {
		log.Warn().Err(err).Str("component", "history").Msg("activity history disabled")
		return nil
	}
	return store
}

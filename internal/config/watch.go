package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 150 * time.Millisecond

// Watch calls onChange with the reloaded config whenever the file at path is
// written. The parent directory is watched so editors that replace the file
// are still seen. Watch returns once the watcher is running.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					pending = time.After(watchDebounce)
				}
			case <-pending:
				pending = nil
				cfg, err := LoadFrom(path)
				if err != nil {
					log.Warn().Err(err).Str("component", "config").Msg("config reload failed")
					continue
				}
				onChange(ApplyEnv(cfg))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("component", "config").Msg("config watcher error")
			}
		}
	}()
	return nil
}

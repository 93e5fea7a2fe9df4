package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	envDebug   = "INTEGRATIONDECK_DEBUG"
	envLogFile = "INTEGRATIONDECK_LOG_FILE"
)

func debugEnabled() bool {
	return strings.TrimSpace(os.Getenv(envDebug)) != ""
}

// setupLogging keeps the global logger silent unless asked otherwise: the
// dashboard owns the terminal.
func setupLogging() func() {
	level := zerolog.InfoLevel
	if debugEnabled() {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if path := strings.TrimSpace(os.Getenv(envLogFile)); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			log.Logger = zerolog.New(f).With().Timestamp().Logger()
			return func() { _ = f.Close() }
		}
		fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", path, err)
	}

	if debugEnabled() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
		return func() {}
	}

	log.Logger = zerolog.Nop()
	return func() {}
}

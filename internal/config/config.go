package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	EnvBackendURL = "INTEGRATIONDECK_BACKEND_URL"
	EnvUser       = "INTEGRATIONDECK_USER"
	EnvOrg        = "INTEGRATIONDECK_ORG"
	EnvConfigDir  = "INTEGRATIONDECK_CONFIG_DIR"
)

type BackendConfig struct {
	BaseURL               string `json:"base_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

type IdentityConfig struct {
	User string `json:"user"`
	Org  string `json:"org"`
}

type ConnectConfig struct {
	PollIntervalMillis int  `json:"poll_interval_ms"`
	OpenBrowser        bool `json:"open_browser"`
}

type UIConfig struct {
	NotificationSeconds int `json:"notification_seconds"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Identity IdentityConfig `json:"identity"`
	Connect  ConnectConfig  `json:"connect"`
	UI       UIConfig       `json:"ui"`
	History  HistoryConfig  `json:"history"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:               "http://localhost:8000",
			RequestTimeoutSeconds: 15,
		},
		Identity: IdentityConfig{User: "TestUser", Org: "TestOrg"},
		Connect: ConnectConfig{
			PollIntervalMillis: 200,
			OpenBrowser:        true,
		},
		UI:      UIConfig{NotificationSeconds: 6},
		History: HistoryConfig{Enabled: true},
	}
}

func ConfigDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "integrationdeck")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "integrationdeck")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

// HistoryPath resolves the activity database location.
func (c Config) HistoryPath() string {
	if p := strings.TrimSpace(c.History.Path); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "history.db")
}

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	cfg, err := LoadFrom(ConfigPath())
	if err != nil {
		return cfg, err
	}
	return ApplyEnv(cfg), nil
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	return normalize(cfg), nil
}

// ApplyEnv overlays INTEGRATIONDECK_* environment variables.
func ApplyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUser)); v != "" {
		cfg.Identity.User = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOrg)); v != "" {
		cfg.Identity.Org = v
	}
	return cfg
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = def.Backend.BaseURL
	}
	if cfg.Backend.RequestTimeoutSeconds <= 0 {
		cfg.Backend.RequestTimeoutSeconds = def.Backend.RequestTimeoutSeconds
	}
	if cfg.Connect.PollIntervalMillis <= 0 {
		cfg.Connect.PollIntervalMillis = def.Connect.PollIntervalMillis
	}
	if cfg.Connect.PollIntervalMillis < 50 {
		cfg.Connect.PollIntervalMillis = 50
	}
	if cfg.Connect.PollIntervalMillis > 5000 {
		cfg.Connect.PollIntervalMillis = 5000
	}
	if cfg.UI.NotificationSeconds <= 0 {
		cfg.UI.NotificationSeconds = def.UI.NotificationSeconds
	}
	return cfg
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveIdentity persists the last used user/org (read-modify-write).
func SaveIdentity(user, org string) error {
	return SaveIdentityTo(ConfigPath(), user, org)
}

func SaveIdentityTo(path string, user, org string) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.Identity = IdentityConfig{User: strings.TrimSpace(user), Org: strings.TrimSpace(org)}
	return SaveTo(path, cfg)
}

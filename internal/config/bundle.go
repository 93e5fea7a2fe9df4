package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/janekbaraniewski/integrationdeck/internal/core"
)

// bundleFile is the on-disk shape written by `connect --out`.
type bundleFile struct {
	Type        string          `json:"type"`
	Credentials json.RawMessage `json:"credentials"`
}

func SaveBundleTo(path string, bundle core.CredentialBundle) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(bundleFile{Type: bundle.Provider, Credentials: bundle.Raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

func LoadBundleFrom(path string) (core.CredentialBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.CredentialBundle{}, fmt.Errorf("reading credentials: %w", err)
	}
	var file bundleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return core.CredentialBundle{}, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	if core.IsEmptyJSON(file.Credentials) {
		return core.CredentialBundle{}, fmt.Errorf("parsing credentials %s: no credentials in file", path)
	}
	// MarshalIndent re-indented the bundle on save; send it back as compact JSON.
	var compact bytes.Buffer
	if err := json.Compact(&compact, file.Credentials); err != nil {
		return core.CredentialBundle{}, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	return core.NewCredentialBundle(file.Type, compact.Bytes()), nil
}

// Package appupdate tells the user when a newer stable release exists and
// how to install it for the way the binary was installed.
package appupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	binaryName              = "integrationdeck"
	defaultLatestReleaseURL = "https://api.github.com/repos/janekbaraniewski/integrationdeck/releases/latest"
	defaultRequestTimeout   = 1500 * time.Millisecond
	tokenEnv                = "INTEGRATIONDECK_GITHUB_TOKEN"
)

type InstallMethod string

const (
	InstallMethodUnknown   InstallMethod = "unknown"
	InstallMethodHomebrew  InstallMethod = "homebrew"
	InstallMethodGoInstall InstallMethod = "go_install"
	InstallMethodManual    InstallMethod = "manual"
)

var upgradeHints = map[InstallMethod]string{
	InstallMethodHomebrew:  "brew upgrade janekbaraniewski/tap/" + binaryName,
	InstallMethodGoInstall: "go install github.com/janekbaraniewski/integrationdeck/cmd/integrationdeck@latest",
	InstallMethodManual:    "download the latest release from https://github.com/janekbaraniewski/integrationdeck/releases/latest",
	InstallMethodUnknown:   "download the latest release from https://github.com/janekbaraniewski/integrationdeck/releases/latest",
}

type Checker struct {
	LatestReleaseURL string
	HTTPClient       *http.Client
	Timeout          time.Duration
}

type Result struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	InstallMethod   InstallMethod
	UpgradeHint     string
}

// Check compares currentVersion with the latest release. Non-release builds
// (dev, pre-releases) are never reported as outdated.
func (c Checker) Check(ctx context.Context, currentVersion, executablePath string) (Result, error) {
	method := DetectInstallMethod(resolveExecutable(executablePath))
	result := Result{
		CurrentVersion: stableVersion(currentVersion),
		InstallMethod:  method,
		UpgradeHint:    upgradeHints[method],
	}
	if result.CurrentVersion == "" {
		return result, nil
	}

	latest, err := c.latestVersion(ctx, result.CurrentVersion)
	if err != nil {
		return result, err
	}
	result.LatestVersion = latest
	result.UpdateAvailable = semver.Compare(latest, result.CurrentVersion) > 0
	return result, nil
}

func (c Checker) latestVersion(ctx context.Context, current string) (string, error) {
	endpoint := strings.TrimSpace(c.LatestReleaseURL)
	if endpoint == "" {
		endpoint = defaultLatestReleaseURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", binaryName+"/"+current)
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" && isGitHubAPI(endpoint) {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch latest release: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode latest release: %w", err)
	}
	latest := stableVersion(payload.TagName)
	if latest == "" {
		return "", fmt.Errorf("latest release tag is not a stable semver: %q", payload.TagName)
	}
	return latest, nil
}

// DetectInstallMethod guesses how the binary at path was installed.
func DetectInstallMethod(path string) InstallMethod {
	p := strings.ToLower(filepath.ToSlash(filepath.Clean(strings.TrimSpace(path))))
	base := strings.TrimSuffix(filepath.Base(p), ".exe")
	switch {
	case p == "" || p == "." || base != binaryName:
		return InstallMethodUnknown
	case strings.Contains(p, "/cellar/"+binaryName+"/"), strings.HasPrefix(p, "/opt/homebrew/bin/"):
		return InstallMethodHomebrew
	case strings.Contains(p, "/go/bin/"), inGoBin(p):
		return InstallMethodGoInstall
	case strings.HasPrefix(p, "/usr/local/bin/"), strings.Contains(p, "/.local/bin/"):
		return InstallMethodManual
	}
	return InstallMethodUnknown
}

func inGoBin(path string) bool {
	gobin := strings.TrimSpace(os.Getenv("GOBIN"))
	if gobin == "" {
		return false
	}
	return filepath.ToSlash(filepath.Dir(path)) == strings.ToLower(filepath.ToSlash(filepath.Clean(gobin)))
}

func resolveExecutable(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}

func stableVersion(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return ""
	}
	return semver.Canonical(v)
}

func isGitHubAPI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https") && strings.EqualFold(u.Hostname(), "api.github.com")
}

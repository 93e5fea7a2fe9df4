package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/version"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL        = "http://localhost:8000"
	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 8 << 20
)

// Client talks to the integrations backend. The backend owns the OAuth token
// exchange; this client only asks for URLs, bundles and records.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	c := &Client{
		baseURL: normalizeBaseURL(baseURL),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Reconfigure points later calls at a new backend. Calls already in flight
// finish against the old one.
func (c *Client) Reconfigure(baseURL string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = normalizeBaseURL(baseURL)
	if timeout > 0 && c.http.Timeout != timeout {
		hc := *c.http
		hc.Timeout = timeout
		c.http = &hc
	}
}

func (c *Client) snapshot() (string, *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.http
}

// Authorize asks the backend to start the OAuth flow and returns the
// provider's authorization URL.
func (c *Client) Authorize(ctx context.Context, slug string, id core.Identity) (string, error) {
	body, err := c.postForm(ctx, slug, "authorize", identityForm(id))
	if err != nil {
		return "", err
	}

	authURL := decodeURL(body)
	if authURL == "" {
		return "", fmt.Errorf("authorize %s: backend returned an empty authorization URL", slug)
	}
	return authURL, nil
}

// Credentials fetches the bundle the backend stored after the OAuth callback.
// An empty or falsy body yields a nil slice and no error.
func (c *Client) Credentials(ctx context.Context, slug string, id core.Identity) (json.RawMessage, error) {
	body, err := c.postForm(ctx, slug, "credentials", identityForm(id))
	if err != nil {
		return nil, err
	}
	if core.IsEmptyJSON(body) {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("decode %s credentials: response is not JSON", slug)
	}
	return json.RawMessage(bytes.TrimSpace(body)), nil
}

// Load sends the bundle back to the backend and returns the provider records.
func (c *Client) Load(ctx context.Context, slug string, bundle core.CredentialBundle) ([]core.Record, error) {
	form := url.Values{}
	form.Set("credentials", bundle.Encoded())

	body, err := c.postForm(ctx, slug, "load", form)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []core.Record{}, nil
	}
	var records []core.Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode %s records: %w", slug, err)
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}

// Ping checks that the backend root endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	base, hc := c.snapshot()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent())
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, slug, action string, form url.Values) ([]byte, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("backend: provider slug is required")
	}
	base, hc := c.snapshot()
	endpoint := base + "/integrations/" + url.PathEscape(slug) + "/" + action

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", slug, action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent())

	started := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", slug, action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", slug, action, err)
	}

	log.Debug().
		Str("component", "backend").
		Str("provider", slug).
		Str("action", action).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func identityForm(id core.Identity) url.Values {
	form := url.Values{}
	form.Set("user_id", id.User)
	form.Set("org_id", id.Org)
	return form
}

// decodeURL accepts a JSON string body or bare text.
func decodeURL(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(trimmed)
}

func normalizeBaseURL(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		v = DefaultBaseURL
	}
	return strings.TrimRight(v, "/")
}

func userAgent() string {
	return "integrationdeck/" + version.Version
}

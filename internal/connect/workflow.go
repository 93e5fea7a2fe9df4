// Package connect drives the OAuth handshake for one provider: authorize,
// wait for the consent window to close, then exchange for credentials.
package connect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/backend"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnectInProgress = errors.New("connect already in progress")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNoCredentials     = errors.New("backend returned no credentials")
	ErrInvalidIdentity   = errors.New("user and organization are required")
	ErrSuperseded        = errors.New("connect superseded by reset")
)

// Backend is the part of the backend API the handshake needs.
type Backend interface {
	Authorize(ctx context.Context, slug string, id core.Identity) (string, error)
	Credentials(ctx context.Context, slug string, id core.Identity) (json.RawMessage, error)
}

type Stage string

const (
	StageAuthorize   Stage = "authorize"
	StagePopup       Stage = "popup"
	StageCredentials Stage = "credentials"
)

// Error is a failed handshake. Message is what the user sees: the backend
// detail when there was one, otherwise a fixed per-stage fallback.
type Error struct {
	Provider core.Provider
	Stage    Stage
	Message  string
	Err      error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

type Transition struct {
	Provider core.Provider
	From     core.ConnectionState
	To       core.ConnectionState
	Err      error
}

type Workflow struct {
	provider core.Provider
	api      Backend
	opener   popup.Opener
	interval time.Duration

	mu        sync.Mutex
	state     core.ConnectionState
	gen       uint64
	observers []func(Transition)
}

func New(provider core.Provider, api Backend, opener popup.Opener, interval time.Duration) *Workflow {
	return &Workflow{
		provider: provider,
		api:      api,
		opener:   opener,
		interval: popup.ClampInterval(interval),
		state:    core.StateDisconnected,
	}
}

func (w *Workflow) Provider() core.Provider { return w.provider }

func (w *Workflow) State() core.ConnectionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OnTransition registers fn for every state change. fn runs outside the lock.
func (w *Workflow) OnTransition(fn func(Transition)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// Connect runs the whole handshake and returns the bundle tagged with the
// provider name. It blocks until the consent window closes or ctx ends.
func (w *Workflow) Connect(ctx context.Context, id core.Identity) (core.CredentialBundle, error) {
	id = id.Trimmed()
	if !id.Valid() {
		return core.CredentialBundle{}, ErrInvalidIdentity
	}
	gen, err := w.begin()
	if err != nil {
		return core.CredentialBundle{}, err
	}

	logger := log.With().Str("component", "connect").Str("provider", w.provider.Slug).Logger()

	authURL, err := w.api.Authorize(ctx, w.provider.Slug, id)
	if err != nil {
		return w.fail(gen, StageAuthorize, backend.DetailOr(err, "Failed to authorize "+w.provider.Label), err)
	}

	win, err := w.opener.Open(ctx, popup.Request{
		URL:    authURL,
		Title:  w.provider.AuthorizationTitle(),
		Width:  w.provider.WindowWidth,
		Height: w.provider.WindowHeight,
	})
	if err != nil {
		return w.fail(gen, StagePopup, "Failed to open "+w.provider.AuthorizationTitle(), err)
	}
	logger.Debug().Dur("interval", w.interval).Msg("authorization window opened, polling for closure")

	if err := popup.NewPoller(w.interval).Wait(ctx, win); err != nil {
		win.Close()
		return w.fail(gen, StagePopup, w.provider.Label+" authorization cancelled", err)
	}

	if !w.advance(gen, core.StateExchanging) {
		return core.CredentialBundle{}, ErrSuperseded
	}

	raw, err := w.api.Credentials(ctx, w.provider.Slug, id)
	if err != nil {
		return w.fail(gen, StageCredentials, backend.DetailOr(err, "Failed to retrieve "+w.provider.Label+" credentials"), err)
	}
	if core.IsEmptyJSON(raw) {
		return w.fail(gen, StageCredentials, fmt.Sprintf("No %s credentials available yet", w.provider.Label), ErrNoCredentials)
	}

	if !w.advance(gen, core.StateConnected) {
		return core.CredentialBundle{}, ErrSuperseded
	}
	logger.Info().Msg("connected")
	return core.NewCredentialBundle(w.provider.Name, raw), nil
}

// Reset returns the workflow to disconnected. A handshake still in flight
// keeps running but can no longer change the state.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.gen++
	from := w.state
	w.state = core.StateDisconnected
	observers := w.snapshotObservers()
	w.mu.Unlock()

	if from != core.StateDisconnected {
		notify(observers, Transition{Provider: w.provider, From: from, To: core.StateDisconnected})
	}
}

func (w *Workflow) begin() (uint64, error) {
	w.mu.Lock()
	switch {
	case w.state.Busy():
		w.mu.Unlock()
		return 0, ErrConnectInProgress
	case w.state == core.StateConnected:
		w.mu.Unlock()
		return 0, ErrAlreadyConnected
	}
	w.gen++
	gen := w.gen
	from := w.state
	w.state = core.StateConnecting
	observers := w.snapshotObservers()
	w.mu.Unlock()

	notify(observers, Transition{Provider: w.provider, From: from, To: core.StateConnecting})
	return gen, nil
}

func (w *Workflow) advance(gen uint64, to core.ConnectionState) bool {
	return w.move(gen, to, nil)
}

func (w *Workflow) fail(gen uint64, stage Stage, message string, cause error) (core.CredentialBundle, error) {
	connErr := &Error{Provider: w.provider, Stage: stage, Message: message, Err: cause}
	if !w.move(gen, core.StateDisconnected, connErr) {
		return core.CredentialBundle{}, ErrSuperseded
	}
	log.Warn().
		Str("component", "connect").
		Str("provider", w.provider.Slug).
		Str("stage", string(stage)).
		Err(cause).
		Msg(message)
	return core.CredentialBundle{}, connErr
}

func (w *Workflow) move(gen uint64, to core.ConnectionState, cause error) bool {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return false
	}
	from := w.state
	w.state = to
	observers := w.snapshotObservers()
	w.mu.Unlock()

	notify(observers, Transition{Provider: w.provider, From: from, To: to, Err: cause})
	return true
}

func (w *Workflow) snapshotObservers() []func(Transition) {
	return slices.Clone(w.observers)
}

func notify(observers []func(Transition), t Transition) {
	for _, fn := range observers {
		fn(t)
	}
}

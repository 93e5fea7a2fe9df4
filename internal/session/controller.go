// Package session owns the state shared by the connect workflow and the data
// panel: identity, selected provider and the credential bundle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/connect"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/janekbaraniewski/integrationdeck/internal/providers"
	"github.com/rs/zerolog/log"
)

var (
	ErrIdentityInvalid    = errors.New("user and organization are required")
	ErrNoProviderSelected = errors.New("no integration selected")
	ErrSelectionChanged   = errors.New("integration selection changed during connect")
	ErrProviderMismatch   = errors.New("credentials belong to a different integration")
)

// API is the full backend surface the session uses.
type API interface {
	connect.Backend
	Loader
}

type Options struct {
	API          API
	Opener       popup.Opener
	PollInterval time.Duration
	Identity     core.Identity
	// OnActivity receives every connect, load and disconnect outcome.
	OnActivity func(core.Activity)
	// OnTransition receives connection state changes of the active workflow.
	OnTransition func(connect.Transition)
}

// Controller is the single owner of identity, selection and credentials.
// Children get them passed in and clear credentials only through Disconnect.
type Controller struct {
	api          API
	opener       popup.Opener
	onActivity   func(core.Activity)
	onTransition func(connect.Transition)

	mu            sync.Mutex
	interval      time.Duration
	identity      core.Identity
	provider      core.Provider
	workflow      *connect.Workflow
	credentials   *core.CredentialBundle
	panel         *Panel
	cancelConnect context.CancelFunc
	// cancelOwner is the connect call that installed cancelConnect.
	cancelOwner uint64
	connectSeq  uint64
	// gen moves on every reset so a handshake finishing afterwards is dropped.
	gen uint64
}

func NewController(opts Options) *Controller {
	return &Controller{
		api:          opts.API,
		opener:       opts.Opener,
		interval:     popup.ClampInterval(opts.PollInterval),
		identity:     opts.Identity.Trimmed(),
		onActivity:   opts.OnActivity,
		onTransition: opts.OnTransition,
	}
}

func (c *Controller) Identity() core.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SetIdentity updates the identity used by the next connect.
func (c *Controller) SetIdentity(user, org string) core.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = core.NewIdentity(user, org)
	return c.identity
}

// SetPollInterval applies to workflows created by later selections.
func (c *Controller) SetPollInterval(d time.Duration) {
	c.mu.Lock()
	c.interval = popup.ClampInterval(d)
	c.mu.Unlock()
}

// Select switches the active provider. Held credentials and records are
// dropped first, and an in-flight connect for the old provider is cancelled.
func (c *Controller) Select(name string) (core.Provider, error) {
	c.mu.Lock()
	if !c.identity.Valid() {
		c.mu.Unlock()
		return core.Provider{}, ErrIdentityInvalid
	}
	c.mu.Unlock()

	provider, err := providers.Lookup(name)
	if err != nil {
		return core.Provider{}, err
	}

	c.mu.Lock()
	c.resetLocked()
	c.provider = provider
	c.workflow = connect.New(provider, c.api, c.opener, c.interval)
	c.workflow.OnTransition(c.onTransition)
	c.mu.Unlock()

	log.Debug().Str("component", "session").Str("provider", provider.Slug).Msg("integration selected")
	return provider, nil
}

// ClearSelection returns to the no-provider state.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.resetLocked()
	c.provider = core.Provider{}
	c.workflow = nil
	c.mu.Unlock()
}

func (c *Controller) Selected() (core.Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider, !c.provider.IsZero()
}

func (c *Controller) ConnectionState() core.ConnectionState {
	c.mu.Lock()
	wf := c.workflow
	c.mu.Unlock()
	if wf == nil {
		return core.StateDisconnected
	}
	return wf.State()
}

// Connect runs the OAuth handshake for the selected provider and, if the
// selection did not change meanwhile, takes ownership of the bundle.
func (c *Controller) Connect(ctx context.Context) (core.CredentialBundle, error) {
	c.mu.Lock()
	if c.workflow == nil {
		c.mu.Unlock()
		return core.CredentialBundle{}, ErrNoProviderSelected
	}
	if !c.identity.Valid() {
		c.mu.Unlock()
		return core.CredentialBundle{}, ErrIdentityInvalid
	}
	wf := c.workflow
	identity := c.identity
	provider := c.provider
	if wf.State().Busy() {
		c.mu.Unlock()
		return core.CredentialBundle{}, connect.ErrConnectInProgress
	}
	c.connectSeq++
	seq := c.connectSeq
	gen := c.gen
	connectCtx, cancel := context.WithCancel(ctx)
	c.cancelConnect = cancel
	c.cancelOwner = seq
	c.mu.Unlock()
	defer cancel()

	bundle, err := wf.Connect(connectCtx, identity)

	c.mu.Lock()
	if c.cancelOwner == seq {
		c.cancelConnect = nil
	}
	if c.workflow != wf {
		c.mu.Unlock()
		if err == nil {
			err = ErrSelectionChanged
		}
		return core.CredentialBundle{}, err
	}
	if err == nil && (c.gen != gen || wf.State() != core.StateConnected) {
		err = connect.ErrSuperseded
	}
	if err != nil {
		c.mu.Unlock()
		if recordConnectFailure(err) {
			c.emit(core.Activity{Kind: core.ActivityConnect, Provider: provider.Name, Identity: identity, Outcome: core.OutcomeFailed, Message: err.Error()})
		}
		return core.CredentialBundle{}, err
	}
	c.adoptLocked(provider, identity, bundle)
	c.mu.Unlock()

	c.emit(core.Activity{Kind: core.ActivityConnect, Provider: provider.Name, Identity: identity, Outcome: core.OutcomeOK, Credentials: &bundle})
	return bundle, nil
}

// recordConnectFailure reports whether err is a real handshake failure rather
// than a rejected call or one the user abandoned.
func recordConnectFailure(err error) bool {
	switch {
	case errors.Is(err, connect.ErrConnectInProgress),
		errors.Is(err, connect.ErrAlreadyConnected),
		errors.Is(err, connect.ErrSuperseded),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// AdoptCredentials installs a bundle obtained earlier (e.g. from a file).
// The bundle must be tagged with the selected provider.
func (c *Controller) AdoptCredentials(raw json.RawMessage, providerName string) (core.CredentialBundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider.IsZero() {
		return core.CredentialBundle{}, ErrNoProviderSelected
	}
	if providerName != "" && !c.provider.Matches(providerName) {
		return core.CredentialBundle{}, fmt.Errorf("%w: have %s, selected %s", ErrProviderMismatch, providerName, c.provider.Name)
	}
	if core.IsEmptyJSON(raw) {
		return core.CredentialBundle{}, ErrNoCredentials
	}
	bundle := core.NewCredentialBundle(c.provider.Name, raw)
	c.adoptLocked(c.provider, c.identity, bundle)
	return bundle, nil
}

func (c *Controller) Credentials() (core.CredentialBundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credentials == nil {
		return core.CredentialBundle{}, false
	}
	return *c.credentials, true
}

// Panel returns the data panel for the current credentials, or nil when
// there are none.
func (c *Controller) Panel() *Panel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel
}

// Disconnect drops credentials and records but keeps the selection, so the
// user lands back on the connect action.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	provider := c.provider
	identity := c.identity
	had := c.credentials != nil
	c.resetLocked()
	c.mu.Unlock()

	if had {
		c.emit(core.Activity{Kind: core.ActivityDisconnect, Provider: provider.Name, Identity: identity, Outcome: core.OutcomeOK})
	}
}

func (c *Controller) adoptLocked(provider core.Provider, identity core.Identity, bundle core.CredentialBundle) {
	b := bundle
	c.credentials = &b
	c.panel = newPanel(provider, identity, &b, c.api, c.Disconnect, c.emit)
}

func (c *Controller) resetLocked() {
	c.gen++
	if c.cancelConnect != nil {
		c.cancelConnect()
		c.cancelConnect = nil
	}
	if c.panel != nil {
		c.panel.detach()
	}
	c.credentials = nil
	c.panel = nil
	if c.workflow != nil {
		c.workflow.Reset()
	}
}

func (c *Controller) emit(a core.Activity) {
	if c.onActivity == nil {
		return
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now()
	}
	c.onActivity(a)
}

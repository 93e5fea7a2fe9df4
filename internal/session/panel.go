package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/backend"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrNoCredentials  = errors.New("no credentials: connect first")
	ErrLoadInProgress = errors.New("load already in progress")
)

type Loader interface {
	Load(ctx context.Context, slug string, bundle core.CredentialBundle) ([]core.Record, error)
}

type Phase int

const (
	PhaseIdle    Phase = iota // nothing loaded yet, or cleared
	PhaseLoading              // load call in flight
	PhaseLoaded               // last load succeeded, possibly with zero records
	PhaseFailed               // last load failed; earlier records are kept
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

type PanelStatus struct {
	Phase    Phase
	Records  []core.Record
	Err      string
	LoadedAt time.Time
}

// Empty reports the "no data" state: a load succeeded and returned nothing.
func (s PanelStatus) Empty() bool {
	return s.Phase == PhaseLoaded && len(s.Records) == 0
}

// TypeCounts tallies records by type, for the breakdown chart.
func (s PanelStatus) TypeCounts() map[string]int {
	return lo.CountValuesBy(s.Records, func(r core.Record) string {
		if r.Type == "" {
			return core.MissingValue
		}
		return r.Type
	})
}

// Panel holds the records loaded for one provider's credentials. It never
// owns the credentials: Disconnect hands clearing back to the controller.
type Panel struct {
	provider     core.Provider
	loader       Loader
	onDisconnect func()
	onActivity   func(core.Activity)
	now          func() time.Time

	mu       sync.Mutex
	bundle   *core.CredentialBundle
	identity core.Identity
	records  []core.Record
	phase    Phase
	errMsg   string
	loadedAt time.Time
}

func newPanel(provider core.Provider, identity core.Identity, bundle *core.CredentialBundle, loader Loader, onDisconnect func(), onActivity func(core.Activity)) *Panel {
	return &Panel{
		provider:     provider,
		identity:     identity,
		bundle:       bundle,
		loader:       loader,
		onDisconnect: onDisconnect,
		onActivity:   onActivity,
		now:          time.Now,
	}
}

func (p *Panel) Provider() core.Provider { return p.provider }

func (p *Panel) Status() PanelStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PanelStatus{
		Phase:    p.phase,
		Records:  append([]core.Record(nil), p.records...),
		Err:      p.errMsg,
		LoadedAt: p.loadedAt,
	}
}

// Load fetches records for the bound credentials. Without credentials it
// fails before touching the network. A failed load keeps the records shown
// before it.
func (p *Panel) Load(ctx context.Context) ([]core.Record, error) {
	p.mu.Lock()
	if p.bundle == nil || p.bundle.IsEmpty() {
		p.mu.Unlock()
		return nil, ErrNoCredentials
	}
	if p.phase == PhaseLoading {
		p.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	bundle := *p.bundle
	prevPhase := p.phase
	p.phase = PhaseLoading
	p.errMsg = ""
	p.mu.Unlock()

	records, err := p.loader.Load(ctx, p.provider.Slug, bundle)

	p.mu.Lock()
	if p.bundle == nil {
		// Disconnected while the call was in flight.
		p.phase = PhaseIdle
		p.mu.Unlock()
		return nil, ErrNoCredentials
	}
	if err != nil {
		p.phase = PhaseFailed
		p.errMsg = backend.DetailOr(err, "Failed to load data")
		msg := p.errMsg
		p.mu.Unlock()

		log.Warn().Str("component", "panel").Str("provider", p.provider.Slug).Str("prev_phase", prevPhase.String()).Err(err).Msg("load failed")
		p.emit(core.Activity{Kind: core.ActivityLoad, Outcome: core.OutcomeFailed, Message: msg})
		return nil, &LoadError{Message: msg, Err: err}
	}
	if records == nil {
		records = []core.Record{}
	}
	p.records = records
	p.phase = PhaseLoaded
	p.loadedAt = p.now()
	p.mu.Unlock()

	p.emit(core.Activity{Kind: core.ActivityLoad, Outcome: core.OutcomeOK, RecordCount: len(records)})
	out := make([]core.Record, len(records))
	copy(out, records)
	return out, nil
}

// Clear drops the held records; the credentials stay.
func (p *Panel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == PhaseLoading {
		return
	}
	p.records = nil
	p.phase = PhaseIdle
	p.errMsg = ""
	p.loadedAt = time.Time{}
}

// Disconnect drops records and credentials and tells the owner to forget the
// bundle.
func (p *Panel) Disconnect() {
	p.mu.Lock()
	p.records = nil
	p.phase = PhaseIdle
	p.errMsg = ""
	p.bundle = nil
	p.mu.Unlock()

	if p.onDisconnect != nil {
		p.onDisconnect()
	}
}

func (p *Panel) detach() {
	p.mu.Lock()
	p.bundle = nil
	p.records = nil
	p.phase = PhaseIdle
	p.errMsg = ""
	p.mu.Unlock()
}

func (p *Panel) emit(a core.Activity) {
	if p.onActivity == nil {
		return
	}
	a.Provider = p.provider.Name
	a.Identity = p.identity
	a.OccurredAt = p.now()
	p.onActivity(a)
}

// LoadError carries the user-facing message of a failed load.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string { return e.Message }
func (e *LoadError) Unwrap() error { return e.Err }

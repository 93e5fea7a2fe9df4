package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/janekbaraniewski/integrationdeck/internal/connect"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/janekbaraniewski/integrationdeck/internal/providers"
)

func newTestController(api *fakeAPI, opener popup.Opener) *Controller {
	return NewController(Options{
		API:          api,
		Opener:       opener,
		PollInterval: popup.MinPollInterval,
		Identity:     core.Identity{User: "TestUser", Org: "TestOrg"},
	})
}

func TestSelect_RequiresValidIdentity(t *testing.T) {
	c := newTestController(newFakeAPI(), instantOpener{})
	c.SetIdentity("TestUser", "   ")

	if _, err := c.Select("Notion"); !errors.Is(err, ErrIdentityInvalid) {
		t.Fatalf("err = %v, want ErrIdentityInvalid", err)
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("provider selected with invalid identity")
	}
}

func TestSelect_UnknownProviderMakesNoBackendCall(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api, instantOpener{})

	if _, err := c.Select("Salesforce"); !errors.Is(err, providers.ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
	if _, err := c.Connect(context.Background()); !errors.Is(err, ErrNoProviderSelected) {
		t.Fatalf("connect err = %v, want ErrNoProviderSelected", err)
	}
	if api.credCalls.Load() != 0 {
		t.Fatal("backend called without a provider")
	}
}

func TestConnect_EveryProviderTagsBundle(t *testing.T) {
	for _, p := range providers.AllProviders() {
		t.Run(p.Slug, func(t *testing.T) {
			c := newTestController(newFakeAPI(), instantOpener{})
			if _, err := c.Select(p.Name); err != nil {
				t.Fatalf("Select: %v", err)
			}
			bundle, err := c.Connect(context.Background())
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			if bundle.Provider != p.Name {
				t.Fatalf("bundle provider = %q, want %q", bundle.Provider, p.Name)
			}
			held, ok := c.Credentials()
			if !ok || held.Provider != p.Name {
				t.Fatalf("held credentials = %+v, %v", held, ok)
			}
			if c.Panel() == nil || c.Panel().Provider().Slug != p.Slug {
				t.Fatal("panel not bound to the connected provider")
			}
		})
	}
}

func TestSelect_SwitchClearsCredentialsBeforeNewConnect(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api, instantOpener{})

	if _, err := c.Select("Notion"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	oldPanel := c.Panel()

	if _, err := c.Select("Airtable"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, ok := c.Credentials(); ok {
		t.Fatal("credentials survived a provider switch")
	}
	if c.Panel() != nil {
		t.Fatal("panel survived a provider switch")
	}
	if c.ConnectionState() != core.StateDisconnected {
		t.Fatalf("state = %s, want disconnected", c.ConnectionState())
	}

	// The old panel must not load with the old credentials anymore.
	if _, err := oldPanel.Load(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("old panel load err = %v, want ErrNoCredentials", err)
	}
	if api.loadCalls.Load() != 0 {
		t.Fatal("old panel reached the backend")
	}

	bundle, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if bundle.Provider != "Airtable" {
		t.Fatalf("bundle provider = %q", bundle.Provider)
	}
}

func TestSelect_SameProviderAgainClearsCredentials(t *testing.T) {
	c := newTestController(newFakeAPI(), instantOpener{})
	if _, err := c.Select("HubSpot"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := c.Select("hubspot"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, ok := c.Credentials(); ok {
		t.Fatal("credentials survived re-selection")
	}
}

func TestConnect_SwitchDuringConnectDiscardsResult(t *testing.T) {
	api := newFakeAPI()
	opener := heldOpener{windows: make(chan *popup.ManualWindow, 1)}
	c := newTestController(api, opener)

	if _, err := c.Select("Notion"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		done <- err
	}()

	win := <-opener.windows
	if c.ConnectionState() != core.StateConnecting {
		t.Fatalf("state = %s, want connecting", c.ConnectionState())
	}
	if _, err := c.Select("HubSpot"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	win.Close()

	if err := <-done; err == nil {
		t.Fatal("stale connect succeeded")
	}
	if _, ok := c.Credentials(); ok {
		t.Fatal("stale Notion credentials were adopted under HubSpot")
	}
	if api.credCalls.Load() != 0 {
		t.Fatalf("credential calls = %d, want 0", api.credCalls.Load())
	}
}

func TestConnect_DuplicateRejected(t *testing.T) {
	opener := heldOpener{windows: make(chan *popup.ManualWindow, 1)}
	c := newTestController(newFakeAPI(), opener)
	if _, err := c.Select("Airtable"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		done <- err
	}()
	win := <-opener.windows

	if _, err := c.Connect(context.Background()); !errors.Is(err, connect.ErrConnectInProgress) {
		t.Fatalf("err = %v, want ErrConnectInProgress", err)
	}
	win.Close()
	if err := <-done; err != nil {
		t.Fatalf("first connect: %v", err)
	}
}

func TestDisconnect_KeepsSelectionDropsCredentials(t *testing.T) {
	var mu sync.Mutex
	var kinds []core.ActivityKind
	c := NewController(Options{
		API:      newFakeAPI(),
		Opener:   instantOpener{},
		Identity: core.Identity{User: "u", Org: "o"},
		OnActivity: func(a core.Activity) {
			mu.Lock()
			kinds = append(kinds, a.Kind)
			mu.Unlock()
		},
	})
	if _, err := c.Select("Notion"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.Panel().Disconnect()

	if _, ok := c.Credentials(); ok {
		t.Fatal("credentials survived disconnect")
	}
	if c.Panel() != nil {
		t.Fatal("panel survived disconnect")
	}
	if p, ok := c.Selected(); !ok || p.Slug != "notion" {
		t.Fatalf("selection = %+v, %v; want notion kept", p, ok)
	}
	if c.ConnectionState() != core.StateDisconnected {
		t.Fatalf("state = %s", c.ConnectionState())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []core.ActivityKind{core.ActivityConnect, core.ActivityDisconnect}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Fatalf("activities = %v, want %v", kinds, want)
	}
}

func TestConnect_DisconnectAfterConnectedTransitionDropsBundle(t *testing.T) {
	var mu sync.Mutex
	var activities []core.Activity
	var c *Controller
	c = NewController(Options{
		API:          newFakeAPI(),
		Opener:       instantOpener{},
		PollInterval: popup.MinPollInterval,
		Identity:     core.Identity{User: "u", Org: "o"},
		OnActivity: func(a core.Activity) {
			mu.Lock()
			activities = append(activities, a)
			mu.Unlock()
		},
		OnTransition: func(tr connect.Transition) {
			if tr.To == core.StateConnected {
				c.Disconnect()
			}
		},
	})
	if _, err := c.Select("Notion"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if _, err := c.Connect(context.Background()); !errors.Is(err, connect.ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if _, ok := c.Credentials(); ok {
		t.Fatal("credentials adopted after disconnect")
	}
	if c.Panel() != nil {
		t.Fatal("panel created after disconnect")
	}
	if c.ConnectionState() != core.StateDisconnected {
		t.Fatalf("state = %s, want disconnected", c.ConnectionState())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(activities) != 0 {
		t.Fatalf("activities = %+v, want none", activities)
	}
}

func TestConnect_CancelledConnectNotRecordedAsFailure(t *testing.T) {
	var mu sync.Mutex
	var activities []core.Activity
	opener := heldOpener{windows: make(chan *popup.ManualWindow, 1)}
	c := NewController(Options{
		API:          newFakeAPI(),
		Opener:       opener,
		PollInterval: popup.MinPollInterval,
		Identity:     core.Identity{User: "u", Org: "o"},
		OnActivity: func(a core.Activity) {
			mu.Lock()
			activities = append(activities, a)
			mu.Unlock()
		},
	})
	if _, err := c.Select("Airtable"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		done <- err
	}()
	<-opener.windows

	c.Disconnect()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("cancelled connect succeeded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not cancel the connect")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, a := range activities {
		if a.Outcome == core.OutcomeFailed {
			t.Fatalf("cancelled connect recorded as failure: %+v", a)
		}
	}
}

func TestConnect_StaleCallKeepsNewerCancel(t *testing.T) {
	opener := &gatedOpener{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		windows: make(chan *popup.ManualWindow, 1),
	}
	c := newTestController(newFakeAPI(), opener)
	if _, err := c.Select("HubSpot"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	stale := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		stale <- err
	}()
	<-opener.entered
	c.Disconnect()

	current := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		current <- err
	}()
	<-opener.windows

	close(opener.release)
	if err := <-stale; err == nil {
		t.Fatal("stale connect succeeded")
	}

	// The newer connect must still be cancellable.
	c.Disconnect()
	select {
	case err := <-current:
		if err == nil {
			t.Fatal("cancelled connect succeeded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not cancel the newer connect")
	}
}

func TestAdoptCredentials_RejectsOtherProvider(t *testing.T) {
	c := newTestController(newFakeAPI(), instantOpener{})
	if _, err := c.Select("Notion"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := c.AdoptCredentials([]byte(`{"t":1}`), "HubSpot"); !errors.Is(err, ErrProviderMismatch) {
		t.Fatalf("err = %v, want ErrProviderMismatch", err)
	}
	bundle, err := c.AdoptCredentials([]byte(`{"t":1}`), "notion")
	if err != nil {
		t.Fatalf("AdoptCredentials: %v", err)
	}
	if bundle.Provider != "Notion" || c.Panel() == nil {
		t.Fatalf("bundle = %+v, panel = %v", bundle, c.Panel())
	}
}

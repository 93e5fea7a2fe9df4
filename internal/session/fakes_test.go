package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
)

type fakeAPI struct {
	mu        sync.Mutex
	creds     map[string]json.RawMessage
	records   []core.Record
	loadErr   error
	loadCalls atomic.Int32
	credCalls atomic.Int32
	loadedFor []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{creds: map[string]json.RawMessage{
		"notion":   json.RawMessage(`{"access_token":"notion-token"}`),
		"airtable": json.RawMessage(`{"access_token":"airtable-token"}`),
		"hubspot":  json.RawMessage(`{"access_token":"hubspot-token"}`),
	}}
}

func (f *fakeAPI) Authorize(_ context.Context, slug string, _ core.Identity) (string, error) {
	return "https://auth.example/" + slug, nil
}

func (f *fakeAPI) Credentials(_ context.Context, slug string, _ core.Identity) (json.RawMessage, error) {
	f.credCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds[slug], nil
}

func (f *fakeAPI) Load(_ context.Context, slug string, bundle core.CredentialBundle) ([]core.Record, error) {
	f.loadCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadedFor = append(f.loadedFor, slug+":"+bundle.Provider)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]core.Record(nil), f.records...), nil
}

func (f *fakeAPI) setRecords(records []core.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.loadErr = err
}

// instantOpener returns windows that are already closed.
type instantOpener struct{}

func (instantOpener) Open(_ context.Context, req popup.Request) (popup.Window, error) {
	win := popup.NewManualWindow(req)
	win.Close()
	return win, nil
}

// heldOpener hands every window to the test, which decides when to close it.
type heldOpener struct {
	windows chan *popup.ManualWindow
}

func (o heldOpener) Open(_ context.Context, req popup.Request) (popup.Window, error) {
	win := popup.NewManualWindow(req)
	o.windows <- win
	return win, nil
}

// gatedOpener blocks the first Open until release is closed, ignoring ctx.
// Later calls behave like heldOpener.
type gatedOpener struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	windows chan *popup.ManualWindow
}

func (o *gatedOpener) Open(_ context.Context, req popup.Request) (popup.Window, error) {
	if o.calls.Add(1) == 1 {
		close(o.entered)
		<-o.release
		return popup.NewManualWindow(req), nil
	}
	win := popup.NewManualWindow(req)
	o.windows <- win
	return win, nil
}

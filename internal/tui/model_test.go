package tui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/janekbaraniewski/integrationdeck/internal/backend"
	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/history"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/janekbaraniewski/integrationdeck/internal/session"
)

type stubAPI struct {
	mu      sync.Mutex
	records []core.Record
	loadErr error
	authErr error
}

func (s *stubAPI) Authorize(_ context.Context, slug string, _ core.Identity) (string, error) {
	if s.authErr != nil {
		return "", s.authErr
	}
	return "https://auth.example/" + slug, nil
}

func (s *stubAPI) Credentials(_ context.Context, slug string, _ core.Identity) (json.RawMessage, error) {
	return json.RawMessage(`{"token":"` + slug + `"}`), nil
}

func (s *stubAPI) Load(_ context.Context, _ string, _ core.CredentialBundle) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]core.Record(nil), s.records...), nil
}

func (s *stubAPI) set(records []core.Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.loadErr = err
}

type closedOpener struct{}

func (closedOpener) Open(_ context.Context, req popup.Request) (popup.Window, error) {
	win := popup.NewManualWindow(req)
	win.Close()
	return win, nil
}

type stubHistory struct {
	entries []history.Entry
}

func (s stubHistory) List(_ context.Context, _ history.Filter) ([]history.Entry, error) {
	return s.entries, nil
}

func newTestModel(t *testing.T, api *stubAPI, user, org string) (Model, *session.Controller) {
	t.Helper()
	ctrl := session.NewController(session.Options{
		API:          api,
		Opener:       closedOpener{},
		PollInterval: popup.MinPollInterval,
		Identity:     core.NewIdentity(user, org),
	})
	m := NewModel(context.Background(), Options{Session: ctrl, NoticeTTL: time.Millisecond})
	m.width = 120
	return m, ctrl
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

var (
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// connectModel selects the provider at the cursor and runs the handshake.
func connectModel(t *testing.T, m Model) Model {
	t.Helper()
	m = press(t, m, keyTab, keyTab, keyEnter)
	provider, ok := m.session.Selected()
	if !ok {
		t.Fatal("no provider selected")
	}
	next, cmd := m.Update(runeKey('c'))
	m = next.(Model)
	if cmd == nil || !m.connecting {
		t.Fatal("connect did not start")
	}
	next, _ = m.Update(m.connectCmd(provider)())
	return next.(Model)
}

func runLoad(t *testing.T, m Model) Model {
	t.Helper()
	panel := m.session.Panel()
	if panel == nil {
		t.Fatal("no panel")
	}
	records, err := panel.Load(context.Background())
	next, _ := m.Update(loadResultMsg{provider: panel.Provider(), count: len(records), err: err})
	return next.(Model)
}

func TestIdentityValidationMessages(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "", "  ")

	view := m.View()
	for _, want := range []string{"User is required", "Organization is required", "Enter a user and organization"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSelectDisabledWithoutIdentity(t *testing.T) {
	m, ctrl := newTestModel(t, &stubAPI{}, "alice", "")

	m = press(t, m, keyTab, keyTab, keyEnter)
	if _, ok := ctrl.Selected(); ok {
		t.Fatal("provider selected with invalid identity")
	}
	if m.notice == nil || m.notice.kind != noticeError {
		t.Fatalf("notice = %+v, want error notice", m.notice)
	}
}

func TestTypingUpdatesIdentity(t *testing.T) {
	m, ctrl := newTestModel(t, &stubAPI{}, "", "acme")

	m = press(t, m, runeKey('b'), runeKey('o'), runeKey('b'))
	if got := ctrl.Identity().User; got != "bob" {
		t.Fatalf("identity user = %q, want bob", got)
	}
	if strings.Contains(m.View(), "User is required") {
		t.Fatal("validation message still shown")
	}
}

func TestQuitKeyTypesIntoIdentity(t *testing.T) {
	m, ctrl := newTestModel(t, &stubAPI{}, "", "acme")

	m = press(t, m, runeKey('q'))
	if m.focus != focusUser {
		t.Fatalf("focus = %v, want user field", m.focus)
	}
	if got := ctrl.Identity().User; got != "q" {
		t.Fatalf("identity user = %q, want q", got)
	}
}

func TestConnectShowsConnectedAndFocusesPanel(t *testing.T) {
	m, ctrl := newTestModel(t, &stubAPI{}, "alice", "acme")

	m = connectModel(t, m)

	if m.connecting {
		t.Fatal("connecting still true")
	}
	if m.notice == nil || m.notice.text != "Notion Connected" {
		t.Fatalf("notice = %+v", m.notice)
	}
	if m.focus != focusPanel {
		t.Fatalf("focus = %v, want panel", m.focus)
	}
	bundle, ok := ctrl.Credentials()
	if !ok || bundle.Provider != "Notion" {
		t.Fatalf("credentials = %+v, %v", bundle, ok)
	}
	if !strings.Contains(m.View(), "to load data") {
		t.Fatal("panel should show the not-loaded hint")
	}
}

func TestConnectFailureShowsBackendDetail(t *testing.T) {
	api := &stubAPI{authErr: &backend.APIError{StatusCode: 400, Detail: "Unknown organization"}}
	m, ctrl := newTestModel(t, api, "alice", "acme")

	m = connectModel(t, m)

	if m.notice == nil || m.notice.text != "Unknown organization" {
		t.Fatalf("notice = %+v", m.notice)
	}
	if ctrl.ConnectionState() != core.StateDisconnected {
		t.Fatalf("state = %s", ctrl.ConnectionState())
	}
	if ctrl.Panel() != nil {
		t.Fatal("panel should not exist after failed connect")
	}
}

func TestLoadRendersRecordRow(t *testing.T) {
	api := &stubAPI{}
	api.set([]core.Record{{ID: "1", Name: "Page A", Type: "page"}}, nil)
	m, _ := newTestModel(t, api, "alice", "acme")
	m = connectModel(t, m)

	m = runLoad(t, m)

	view := m.View()
	for _, want := range []string{"Page A", "page", "1 record", "LOADED"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEmptyLoadShowsNoData(t *testing.T) {
	api := &stubAPI{}
	api.set([]core.Record{}, nil)
	m, _ := newTestModel(t, api, "alice", "acme")
	m = connectModel(t, m)

	if strings.Contains(m.View(), "No data") {
		t.Fatal("No data shown before any load")
	}
	m = runLoad(t, m)
	if !strings.Contains(m.View(), "No data") {
		t.Fatal("view missing No data after empty load")
	}
}

func TestFailedLoadKeepsRecords(t *testing.T) {
	api := &stubAPI{}
	api.set([]core.Record{{ID: "7", Name: "Base", Type: "base"}}, nil)
	m, _ := newTestModel(t, api, "alice", "acme")
	m = connectModel(t, m)
	m = runLoad(t, m)

	api.set(nil, &backend.APIError{StatusCode: 500, Detail: "Token expired"})
	m = runLoad(t, m)

	if m.notice == nil || m.notice.text != "Token expired" {
		t.Fatalf("notice = %+v", m.notice)
	}
	view := m.View()
	if !strings.Contains(view, "Base") || !strings.Contains(view, "FAILED") {
		t.Fatal("failed load should keep earlier records and show the failed state")
	}
}

func TestClearAndDisconnect(t *testing.T) {
	api := &stubAPI{}
	api.set([]core.Record{{ID: "1", Name: "Page A", Type: "page"}}, nil)
	m, ctrl := newTestModel(t, api, "alice", "acme")
	m = connectModel(t, m)
	m = runLoad(t, m)

	m = press(t, m, runeKey('x'))
	if got := ctrl.Panel().Status().Phase; got != session.PhaseIdle {
		t.Fatalf("phase after clear = %s", got)
	}
	if _, ok := ctrl.Credentials(); !ok {
		t.Fatal("clear dropped credentials")
	}

	m = press(t, m, runeKey('d'))
	if _, ok := ctrl.Credentials(); ok {
		t.Fatal("disconnect kept credentials")
	}
	if m.focus != focusProviders {
		t.Fatalf("focus = %v, want providers", m.focus)
	}
	if strings.Contains(m.View(), "Notion data") {
		t.Fatal("data panel still rendered after disconnect")
	}
}

func TestSwitchingProviderClearsCredentials(t *testing.T) {
	m, ctrl := newTestModel(t, &stubAPI{}, "alice", "acme")
	m = connectModel(t, m)

	m = press(t, m, keyTab) // panel -> user
	m = press(t, m, keyTab, keyTab, tea.KeyMsg{Type: tea.KeyDown}, keyEnter)

	selected, _ := ctrl.Selected()
	if selected.Name != "Airtable" {
		t.Fatalf("selected = %q, want Airtable", selected.Name)
	}
	if _, ok := ctrl.Credentials(); ok {
		t.Fatal("credentials survived provider switch")
	}
	if ctrl.Panel() != nil {
		t.Fatal("panel survived provider switch")
	}
}

func TestPopupConfirmClosesWindow(t *testing.T) {
	m, ctrl := newTestModel(t, &stubAPI{}, "alice", "acme")
	if _, err := ctrl.Select("Notion"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	win := popup.NewManualWindow(popup.Request{URL: "https://auth.example/notion", Title: "Notion Authorization"})

	next, _ := m.Update(PopupOpenedMsg{Window: win})
	m = next.(Model)
	view := m.View()
	if !strings.Contains(view, "Notion Authorization") || !strings.Contains(view, "https://auth.example/notion") {
		t.Fatalf("view missing consent prompt:\n%s", view)
	}

	m = press(t, m, keyEnter)
	if !win.Closed() {
		t.Fatal("enter did not close the window")
	}
	if m.window != nil {
		t.Fatal("window still tracked")
	}
}

func TestNoticeExpiry(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "alice", "acme")
	next, cmd := m.pushNotice(noticeError, "boom")
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected expiry command")
	}

	next, _ = m.Update(noticeExpiredMsg{id: m.notice.id - 1})
	m = next.(Model)
	if m.notice == nil {
		t.Fatal("stale expiry cleared the current notice")
	}

	next, _ = m.Update(cmd())
	m = next.(Model)
	if m.notice != nil {
		t.Fatal("notice not cleared on expiry")
	}
}

func TestEscDismissesNotice(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "alice", "acme")
	next, _ := m.pushNotice(noticeInfo, "hello")
	m = press(t, next.(Model), keyEsc)
	if m.notice != nil {
		t.Fatal("esc did not dismiss notice")
	}
}

func TestConfigReloadAppliesSettings(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "alice", "acme")
	var applied config.Config
	m.onConfig = func(c config.Config) { applied = c }

	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = "http://backend.internal:9000"
	cfg.UI.NotificationSeconds = 3

	next, _ := m.Update(ConfigReloadedMsg{Config: cfg})
	m = next.(Model)
	if m.noticeTTL != 3*time.Second {
		t.Fatalf("noticeTTL = %v", m.noticeTTL)
	}
	if applied.Backend.BaseURL != cfg.Backend.BaseURL {
		t.Fatalf("onConfig got %q", applied.Backend.BaseURL)
	}
}

func TestHistoryPreview(t *testing.T) {
	ctrl := session.NewController(session.Options{API: &stubAPI{}, Opener: closedOpener{}, Identity: core.NewIdentity("a", "b")})
	src := stubHistory{entries: []history.Entry{{
		OccurredAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Kind:        core.ActivityLoad,
		Provider:    "HubSpot",
		Outcome:     core.OutcomeOK,
		RecordCount: 12,
	}}}
	m := NewModel(context.Background(), Options{Session: ctrl, History: src})

	msg := m.loadHistoryCmd()()
	next, _ := m.Update(msg)
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "HubSpot") || !strings.Contains(view, "12 records") {
		t.Fatalf("history preview missing entry:\n%s", view)
	}
}

func TestHelpOverlayToggles(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "alice", "acme")
	m = press(t, m, keyTab, keyTab, runeKey('?'))
	if !m.showHelp || !strings.Contains(m.View(), "integrationdeck Help") {
		t.Fatal("help overlay not shown")
	}
	m = press(t, m, runeKey('j'))
	if m.showHelp {
		t.Fatal("help overlay not dismissed")
	}
}

func TestLoadWithoutCredentialsNotifies(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "alice", "acme")
	next, _ := m.startLoad()
	m = next.(Model)
	if m.notice == nil || m.notice.text != session.ErrNoCredentials.Error() {
		t.Fatalf("notice = %+v", m.notice)
	}
}

func TestAppUpdateNotice(t *testing.T) {
	m, _ := newTestModel(t, &stubAPI{}, "alice", "acme")
	next, _ := m.Update(AppUpdateMsg{CurrentVersion: "v0.1.0", LatestVersion: "v0.2.0", UpgradeHint: "brew upgrade x"})
	m = next.(Model)
	if m.notice == nil || !strings.Contains(m.notice.text, "v0.2.0") || !strings.Contains(m.notice.text, "brew upgrade x") {
		t.Fatalf("notice = %+v", m.notice)
	}
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/janekbaraniewski/integrationdeck/internal/config"
	"github.com/janekbaraniewski/integrationdeck/internal/connect"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/history"
	"github.com/janekbaraniewski/integrationdeck/internal/popup"
	"github.com/janekbaraniewski/integrationdeck/internal/providers"
	"github.com/janekbaraniewski/integrationdeck/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	defaultNoticeTTL   = 6 * time.Second
	historyPreviewRows = 5
)

type focusArea int

const (
	focusUser      focusArea = iota // identity: user field
	focusOrg                        // identity: organization field
	focusProviders                  // integration list
	focusPanel                      // data panel, only while connected
)

// Session is what the UI needs from the session controller.
type Session interface {
	Identity() core.Identity
	SetIdentity(user, org string) core.Identity
	SetPollInterval(d time.Duration)
	Select(name string) (core.Provider, error)
	Selected() (core.Provider, bool)
	ConnectionState() core.ConnectionState
	Connect(ctx context.Context) (core.CredentialBundle, error)
	Panel() *session.Panel
	Disconnect()
}

// HistorySource lists recorded activity for the preview pane.
type HistorySource interface {
	List(ctx context.Context, filter history.Filter) ([]history.Entry, error)
}

// PopupOpenedMsg delivers the consent window opened by the connect workflow
// so the user can confirm it from the keyboard.
type PopupOpenedMsg struct {
	Window *popup.ManualWindow
}

// TransitionMsg reports a connection state change of the selected workflow.
type TransitionMsg connect.Transition

// ConfigReloadedMsg carries settings re-read after the file changed on disk.
type ConfigReloadedMsg struct {
	Config config.Config
}

// ActivityMsg is sent after an activity was recorded, to refresh the preview.
type ActivityMsg struct {
	Activity core.Activity
}

// AppUpdateMsg announces a newer release found by the startup check.
type AppUpdateMsg struct {
	CurrentVersion string
	LatestVersion  string
	UpgradeHint    string
}

type connectResultMsg struct {
	provider core.Provider
	err      error
}

type loadResultMsg struct {
	provider core.Provider
	count    int
	err      error
}

type noticeExpiredMsg struct {
	id int
}

type historyLoadedMsg struct {
	entries []history.Entry
	err     error
}

type identityPersistedMsg struct {
	err error
}

type noticeKind int

const (
	noticeInfo noticeKind = iota
	noticeError
)

type notification struct {
	id   int
	kind noticeKind
	text string
}

type Options struct {
	Session Session
	History HistorySource
	// NoticeTTL is how long a notification stays up. Zero means 6s.
	NoticeTTL time.Duration
	// OnConnected runs after a successful connect, e.g. to persist the identity.
	OnConnected func(core.Identity) error
	// OnConfig applies reloaded settings outside the UI (backend client).
	OnConfig func(config.Config)
}

type Model struct {
	ctx     context.Context
	session Session
	history HistorySource
	keys    keyMap

	onConnected func(core.Identity) error
	onConfig    func(config.Config)

	userInput textinput.Model
	orgInput  textinput.Model
	spinner   spinner.Model

	providers []core.Provider
	cursor    int
	focus     focusArea

	connecting bool
	window     *popup.ManualWindow

	notice    *notification
	noticeSeq int
	noticeTTL time.Duration

	entries     []history.Entry
	showHistory bool
	showHelp    bool

	width  int
	height int
}

func NewModel(ctx context.Context, opts Options) Model {
	id := opts.Session.Identity()

	user := textinput.New()
	user.Prompt = ""
	user.Placeholder = "user id"
	user.CharLimit = 128
	user.SetValue(id.User)
	user.Focus()

	org := textinput.New()
	org.Prompt = ""
	org.Placeholder = "organization id"
	org.CharLimit = 128
	org.SetValue(id.Org)

	ttl := opts.NoticeTTL
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}

	return Model{
		ctx:         ctx,
		session:     opts.Session,
		history:     opts.History,
		keys:        newKeyMap(),
		onConnected: opts.OnConnected,
		onConfig:    opts.OnConfig,
		userInput:   user,
		orgInput:    org,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(labelStyle)),
		providers:   providers.AllProviders(),
		focus:       focusUser,
		noticeTTL:   ttl,
		showHistory: opts.History != nil,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistoryCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case PopupOpenedMsg:
		m.window = msg.Window
		return m, nil

	case TransitionMsg:
		log.Debug().Str("component", "tui").Str("provider", msg.Provider.Slug).
			Str("from", string(msg.From)).Str("to", string(msg.To)).Msg("connection state changed")
		return m, nil

	case connectResultMsg:
		return m.handleConnectResult(msg)

	case loadResultMsg:
		return m.handleLoadResult(msg)

	case noticeExpiredMsg:
		if m.notice != nil && m.notice.id == msg.id {
			m.notice = nil
		}
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			log.Warn().Str("component", "tui").Err(msg.err).Msg("history load failed")
			return m, nil
		}
		m.entries = msg.entries
		return m, nil

	case ActivityMsg:
		return m, m.loadHistoryCmd()

	case identityPersistedMsg:
		if msg.err != nil {
			log.Warn().Str("component", "tui").Err(msg.err).Msg("identity persist failed")
		}
		return m, nil

	case ConfigReloadedMsg:
		return m.applyConfig(msg.Config)

	case AppUpdateMsg:
		text := fmt.Sprintf("Update available: %s → %s", msg.CurrentVersion, msg.LatestVersion)
		if msg.UpgradeHint != "" {
			text += " (" + msg.UpgradeHint + ")"
		}
		return m.pushNotice(noticeInfo, text)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	// The consent window is open: enter confirms, esc abandons.
	if m.window != nil {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.window.Close()
			m.window = nil
			return m, nil
		case key.Matches(msg, m.keys.Cancel):
			return m.cancelConnect()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Cancel) {
		if m.connecting {
			return m.cancelConnect()
		}
		if m.notice != nil {
			m.notice = nil
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.NextFocus):
		return m.moveFocus(1)
	case key.Matches(msg, m.keys.PrevFocus):
		return m.moveFocus(-1)
	}

	if m.focus == focusUser || m.focus == focusOrg {
		return m.handleIdentityKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.History):
		m.showHistory = !m.showHistory && m.history != nil
		return m, nil
	}

	if m.focus == focusPanel {
		return m.handlePanelKey(msg)
	}
	return m.handleProvidersKey(msg)
}

func (m Model) handleIdentityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		return m.moveFocus(1)
	}
	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds [2]tea.Cmd
	m.userInput, cmds[0] = m.userInput.Update(msg)
	m.orgInput, cmds[1] = m.orgInput.Update(msg)
	m.session.SetIdentity(m.userInput.Value(), m.orgInput.Value())
	return m, tea.Batch(cmds[:]...)
}

func (m Model) handleProvidersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.providers)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Select):
		return m.selectProvider()
	case key.Matches(msg, m.keys.Connect):
		return m.startConnect()
	}
	return m, nil
}

func (m Model) handlePanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Load):
		return m.startLoad()
	case key.Matches(msg, m.keys.Clear):
		if panel := m.session.Panel(); panel != nil {
			panel.Clear()
		}
		return m, nil
	case key.Matches(msg, m.keys.Disconnect):
		if panel := m.session.Panel(); panel != nil {
			panel.Disconnect()
		}
		m.focus = focusProviders
		return m, nil
	}
	return m, nil
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	order := []focusArea{focusUser, focusOrg, focusProviders}
	if m.session.Panel() != nil {
		order = append(order, focusPanel)
	}
	idx := 0
	for i, f := range order {
		if f == m.focus {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(order)) % len(order)
	return m.setFocus(order[idx])
}

func (m Model) setFocus(f focusArea) (tea.Model, tea.Cmd) {
	m.focus = f
	m.userInput.Blur()
	m.orgInput.Blur()
	switch f {
	case focusUser:
		return m, m.userInput.Focus()
	case focusOrg:
		return m, m.orgInput.Focus()
	}
	return m, nil
}

func (m Model) selectProvider() (tea.Model, tea.Cmd) {
	if len(m.providers) == 0 {
		return m, nil
	}
	if !m.session.Identity().Valid() {
		return m.pushNotice(noticeError, "Enter a user and organization first")
	}
	if m.busy() {
		return m.pushNotice(noticeError, "A connection is in progress, press esc to cancel it")
	}
	name := m.providers[m.cursor].Name
	if _, err := m.session.Select(name); err != nil {
		return m.pushNotice(noticeError, err.Error())
	}
	m.window = nil
	return m, nil
}

func (m Model) startConnect() (tea.Model, tea.Cmd) {
	provider, ok := m.session.Selected()
	if !ok {
		return m.pushNotice(noticeError, "Select an integration first")
	}
	if m.connecting {
		return m, nil
	}
	switch m.session.ConnectionState() {
	case core.StateConnected:
		return m.setFocus(focusPanel)
	case core.StateConnecting, core.StateExchanging:
		return m, nil
	}
	m.connecting = true
	return m, tea.Batch(m.connectCmd(provider), m.spinner.Tick)
}

func (m Model) cancelConnect() (tea.Model, tea.Cmd) {
	if m.window != nil {
		m.window.Close()
		m.window = nil
	}
	m.session.Disconnect()
	return m, nil
}

func (m Model) connectCmd(provider core.Provider) tea.Cmd {
	ctx, sess := m.ctx, m.session
	return func() tea.Msg {
		_, err := sess.Connect(ctx)
		return connectResultMsg{provider: provider, err: err}
	}
}

func (m Model) handleConnectResult(msg connectResultMsg) (tea.Model, tea.Cmd) {
	m.connecting = false
	m.window = nil

	if msg.err != nil {
		switch {
		case errors.Is(msg.err, session.ErrSelectionChanged), errors.Is(msg.err, connect.ErrSuperseded):
			return m, nil
		case errors.Is(msg.err, context.Canceled):
			return m.pushNotice(noticeInfo, msg.provider.Label+" connection cancelled")
		}
		return m.pushNotice(noticeError, msg.err.Error())
	}

	next, cmd := m.pushNotice(noticeInfo, msg.provider.Label+" Connected")
	nm := next.(Model)
	focused, focusCmd := nm.setFocus(focusPanel)
	return focused, tea.Batch(cmd, focusCmd, nm.persistIdentityCmd())
}

func (m Model) startLoad() (tea.Model, tea.Cmd) {
	panel := m.session.Panel()
	if panel == nil {
		return m.pushNotice(noticeError, session.ErrNoCredentials.Error())
	}
	if panel.Status().Phase == session.PhaseLoading {
		return m, nil
	}
	ctx := m.ctx
	return m, tea.Batch(func() tea.Msg {
		records, err := panel.Load(ctx)
		return loadResultMsg{provider: panel.Provider(), count: len(records), err: err}
	}, m.spinner.Tick)
}

func (m Model) handleLoadResult(msg loadResultMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		return m, nil
	}
	if errors.Is(msg.err, session.ErrNoCredentials) || errors.Is(msg.err, session.ErrLoadInProgress) {
		return m, nil
	}
	return m.pushNotice(noticeError, msg.err.Error())
}

func (m Model) applyConfig(cfg config.Config) (tea.Model, tea.Cmd) {
	if cfg.UI.NotificationSeconds > 0 {
		m.noticeTTL = time.Duration(cfg.UI.NotificationSeconds) * time.Second
	}
	m.session.SetPollInterval(time.Duration(cfg.Connect.PollIntervalMillis) * time.Millisecond)
	if m.onConfig != nil {
		m.onConfig(cfg)
	}
	return m.pushNotice(noticeInfo, "Settings reloaded")
}

func (m Model) pushNotice(kind noticeKind, text string) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	id := m.noticeSeq
	m.notice = &notification{id: id, kind: kind, text: text}
	return m, tea.Tick(m.noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m Model) persistIdentityCmd() tea.Cmd {
	if m.onConnected == nil {
		return nil
	}
	fn, id := m.onConnected, m.session.Identity()
	return func() tea.Msg {
		return identityPersistedMsg{err: fn(id)}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	if m.history == nil {
		return nil
	}
	src, ctx := m.history, m.ctx
	return func() tea.Msg {
		entries, err := src.List(ctx, history.Filter{Limit: historyPreviewRows})
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m Model) busy() bool {
	if m.connecting {
		return true
	}
	if panel := m.session.Panel(); panel != nil && panel.Status().Phase == session.PhaseLoading {
		return true
	}
	return m.session.ConnectionState().Busy()
}

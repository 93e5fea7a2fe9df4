package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/history"
	"github.com/janekbaraniewski/integrationdeck/internal/session"
	"github.com/janekbaraniewski/integrationdeck/internal/version"
)

const (
	defaultViewWidth = 100
	identityLabelW   = 14
)

func (m Model) View() string {
	w := m.width
	if w <= 0 {
		w = defaultViewWidth
	}
	if m.showHelp {
		return m.renderHelpOverlay(w, m.height)
	}

	sections := []string{
		m.renderHeader(w),
		m.renderIdentity(),
		m.renderProviders(),
	}
	if connectView := m.renderConnect(); connectView != "" {
		sections = append(sections, connectView)
	}
	if panel := m.session.Panel(); panel != nil {
		sections = append(sections, m.renderPanel(panel, w))
	}
	if m.showHistory {
		sections = append(sections, m.renderHistory(w))
	}
	if n := m.renderNotice(w); n != "" {
		sections = append(sections, n)
	}
	sections = append(sections, m.renderFooter(w))
	return strings.Join(sections, "\n\n")
}

func (m Model) renderHeader(w int) string {
	left := headerBrandStyle.Render("integrationdeck") + " " + dimStyle.Render(version.Version)
	right := ConnectionPill(m.session.ConnectionState())
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) sectionTitle(title string, focused bool) string {
	if focused {
		return sectionHeaderFocusedStyle.Render(title)
	}
	return sectionHeaderStyle.Render(title)
}

func (m Model) renderIdentity() string {
	id := core.NewIdentity(m.userInput.Value(), m.orgInput.Value())
	focused := m.focus == focusUser || m.focus == focusOrg

	lines := []string{m.sectionTitle("Identity", focused)}
	lines = append(lines, identityField("User", m.userInput.View(), id.UserError()))
	lines = append(lines, identityField("Organization", m.orgInput.View(), id.OrgError()))
	return strings.Join(lines, "\n")
}

func identityField(label, input, errMsg string) string {
	line := labelStyle.Render(padRight(label, identityLabelW)) + input
	if errMsg != "" {
		line += "  " + errorTextStyle.Render(errMsg)
	}
	return line
}

func (m Model) renderProviders() string {
	enabled := m.session.Identity().Valid()
	selected, hasSelection := m.session.Selected()

	lines := []string{m.sectionTitle("Integrations", m.focus == focusProviders)}
	if !enabled {
		lines = append(lines, dimStyle.Render("Enter a user and organization to choose an integration."))
	}
	for i, p := range m.providers {
		marker := "○"
		if hasSelection && selected.Name == p.Name {
			marker = "●"
		}
		name := lipgloss.NewStyle().Foreground(ProviderColor(p.Slug)).Render(p.Label)
		if !enabled {
			name = dimStyle.Render(p.Label)
		}
		row := marker + " " + name
		if i == m.cursor && m.focus == focusProviders {
			lines = append(lines, cardSelectedStyle.Render(row))
			continue
		}
		lines = append(lines, cardNormalStyle.Render(row))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderConnect() string {
	provider, ok := m.session.Selected()
	if !ok {
		return ""
	}
	state := m.session.ConnectionState()

	var body string
	switch {
	case m.window != nil && !m.window.Closed():
		req := m.window.Request()
		body = m.spinner.View() + " " + valueStyle.Render(req.Title) + labelStyle.Render(" opened in your browser.") + "\n" +
			labelStyle.Render("Press ") + helpKeyStyle.Render("enter") + labelStyle.Render(" once finished, ") +
			helpKeyStyle.Render("esc") + labelStyle.Render(" to cancel.") + "\n" +
			dimStyle.Render(ansi.Truncate(req.URL, defaultViewWidth, "…"))
	case state == core.StateExchanging:
		body = m.spinner.View() + labelStyle.Render(" Retrieving "+provider.Label+" credentials…")
	case m.connecting || state == core.StateConnecting:
		body = m.spinner.View() + labelStyle.Render(" Authorizing "+provider.Label+"…")
	case state == core.StateConnected:
		body = lipgloss.NewStyle().Foreground(colorGreen).Bold(true).Render(provider.Label + " Connected")
	default:
		body = labelStyle.Render("Press ") + helpKeyStyle.Render("c") + labelStyle.Render(" to connect "+provider.Label+".")
	}
	return m.sectionTitle("Connect "+provider.Label, false) + "\n" + body
}

func (m Model) renderPanel(panel *session.Panel, w int) string {
	status := panel.Status()
	provider := panel.Provider()

	header := m.sectionTitle(provider.Label+" data", m.focus == focusPanel) + "  " + PhasePill(status.Phase)
	if !status.LoadedAt.IsZero() {
		header += "  " + dimStyle.Render("loaded "+status.LoadedAt.Format("15:04:05"))
	}
	lines := []string{header}

	if status.Phase == session.PhaseLoading {
		lines = append(lines, m.spinner.View()+labelStyle.Render(" Loading data…"))
	}
	if status.Err != "" {
		lines = append(lines, errorTextStyle.Render(status.Err))
	}

	switch {
	case status.Empty():
		lines = append(lines, valueStyle.Render("No data"))
	case len(status.Records) > 0:
		inner := w - 4
		table := renderRecordsTable(status.Records, inner)
		chart := renderTypeChart(status.TypeCounts(), chartWidth(inner), lipgloss.Height(table))
		if chart != "" && lipgloss.Width(table)+lipgloss.Width(chart)+2 <= inner {
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, table, "  ", chart))
		} else {
			lines = append(lines, table)
		}
		lines = append(lines, dimStyle.Render(recordCount(len(status.Records))))
	case status.Phase == session.PhaseIdle:
		lines = append(lines, labelStyle.Render("Press ")+helpKeyStyle.Render("l")+labelStyle.Render(" to load data."))
	}

	style := panelBoxStyle
	if m.focus == focusPanel {
		style = panelBoxFocusedStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderHistory(w int) string {
	lines := []string{m.sectionTitle("Recent activity", false)}
	if len(m.entries) == 0 {
		lines = append(lines, dimStyle.Render("No activity yet."))
		return strings.Join(lines, "\n")
	}
	for _, e := range m.entries {
		lines = append(lines, ansi.Truncate(historyLine(e), w, "…"))
	}
	return strings.Join(lines, "\n")
}

func historyLine(e history.Entry) string {
	outcome := lipgloss.NewStyle().Foreground(colorGreen).Render("ok")
	if e.Outcome == core.OutcomeFailed {
		outcome = lipgloss.NewStyle().Foreground(colorRed).Render("failed")
	}
	detail := e.Message
	if e.Kind == core.ActivityLoad && e.Outcome == core.OutcomeOK {
		detail = recordCount(e.RecordCount)
	}
	parts := []string{
		dimStyle.Render(e.OccurredAt.Local().Format("01-02 15:04")),
		valueStyle.Render(padRight(string(e.Kind), 10)),
		labelStyle.Render(padRight(e.Provider, 9)),
		outcome,
	}
	if detail != "" {
		parts = append(parts, dimStyle.Render(detail))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderNotice(w int) string {
	if m.notice == nil {
		return ""
	}
	style := notificationInfoStyle
	if m.notice.kind == noticeError {
		style = notificationErrorStyle
	}
	return style.Render(ansi.Truncate(m.notice.text, w-4, "…")) + " " + dimStyle.Render("esc to dismiss")
}

func (m Model) renderFooter(w int) string {
	var bindings []struct{ key, desc string }
	add := func(k, d string) { bindings = append(bindings, struct{ key, desc string }{k, d}) }

	switch {
	case m.window != nil:
		add("enter", "finished in browser")
		add("esc", "cancel")
	case m.focus == focusUser || m.focus == focusOrg:
		add("tab", "next")
		add("ctrl+c", "quit")
	case m.focus == focusPanel:
		add("l", "load")
		add("x", "clear")
		add("d", "disconnect")
		add("tab", "next")
		add("?", "help")
		add("q", "quit")
	default:
		add("↑↓", "move")
		add("enter", "select")
		add("c", "connect")
		add("tab", "next")
		add("?", "help")
		add("q", "quit")
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, helpKeyStyle.Render(b.key)+" "+helpStyle.Render(b.desc))
	}
	return ansi.Truncate(strings.Join(parts, helpStyle.Render(" · ")), w, "…")
}

func padRight(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func recordCount(n int) string {
	if n == 1 {
		return "1 record"
	}
	return fmt.Sprintf("%d records", n)
}

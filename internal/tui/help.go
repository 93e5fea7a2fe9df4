package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// ─── Help Overlay ───────────────────────────────────────────────────────────

// renderHelpOverlay draws a centered help popup with the connect flow and
// keybindings. Dismissed by pressing any key.
func (m Model) renderHelpOverlay(screenW, screenH int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorLavender)
	headingStyle := lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	descStyle := lipgloss.NewStyle().Foreground(colorText)
	dimHintStyle := lipgloss.NewStyle().Foreground(colorDim).Italic(true)

	var lines []string
	lines = append(lines, titleStyle.Render("  integrationdeck Help"))
	lines = append(lines, "")

	// ── Flow ──
	lines = append(lines, headingStyle.Render("  Connecting"))
	lines = append(lines, "")
	steps := []string{
		"1. Fill in user and organization.",
		"2. Pick an integration and press enter.",
		"3. Press c, finish the consent screen in your browser, then press enter.",
		"4. Press l in the data panel to load records.",
	}
	for _, s := range steps {
		lines = append(lines, "    "+descStyle.Render(s))
	}
	lines = append(lines, "")

	// ── States ──
	lines = append(lines, headingStyle.Render("  Data Panel"))
	lines = append(lines, "")
	lines = append(lines, "    "+statusPillDimStyle.Render("NOT LOADED")+"  "+descStyle.Render("nothing loaded yet"))
	lines = append(lines, "    "+statusPillOKStyle.Render("LOADED")+"  "+descStyle.Render("records shown; \"No data\" when the integration returned none"))
	lines = append(lines, "    "+statusPillCritStyle.Render("FAILED")+"  "+descStyle.Render("last load failed; earlier records stay visible"))
	lines = append(lines, "")

	// ── Keys ──
	lines = append(lines, headingStyle.Render("  Keys"))
	lines = append(lines, "")
	for _, b := range []key.Binding{
		m.keys.NextFocus, m.keys.PrevFocus, m.keys.Up, m.keys.Down, m.keys.Select,
		m.keys.Connect, m.keys.Confirm, m.keys.Cancel, m.keys.Load, m.keys.Clear,
		m.keys.Disconnect, m.keys.History, m.keys.Help, m.keys.Quit,
	} {
		h := b.Help()
		lines = append(lines, "    "+helpKeyStyle.Render(padRight(h.Key, 12))+descStyle.Render(h.Desc))
	}
	lines = append(lines, "")
	lines = append(lines, dimHintStyle.Render("  Press any key to close"))

	content := strings.Join(lines, "\n")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Render(content)

	if screenH <= 0 {
		return box
	}
	return lipgloss.Place(screenW, screenH, lipgloss.Center, lipgloss.Center, box)
}

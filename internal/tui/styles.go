package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/janekbaraniewski/integrationdeck/internal/session"
)

// ─── Color Palette (Catppuccin Mocha) ───────────────────────────────────────

var (
	colorMantle   = lipgloss.Color("#181825")
	colorSurface0 = lipgloss.Color("#313244")
	colorSurface1 = lipgloss.Color("#45475A")
	colorText     = lipgloss.Color("#CDD6F4")
	colorSubtext  = lipgloss.Color("#A6ADC8")
	colorDim      = lipgloss.Color("#585B70")

	colorAccent   = lipgloss.Color("#CBA6F7") // mauve – primary accent
	colorBlue     = lipgloss.Color("#89B4FA") // section headers
	colorSapphire = lipgloss.Color("#74C7EC") // keys, links
	colorGreen    = lipgloss.Color("#A6E3A1")
	colorYellow   = lipgloss.Color("#F9E2AF")
	colorRed      = lipgloss.Color("#F38BA8")
	colorPeach    = lipgloss.Color("#FAB387")
	colorTeal     = lipgloss.Color("#94E2D5")
	colorLavender = lipgloss.Color("#B4BEFE")
	colorSky      = lipgloss.Color("#89DCEB")
)

// ─── Reusable Styles ────────────────────────────────────────────────────────

var (
	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	sectionHeaderFocusedStyle = sectionHeaderStyle.
					Foreground(colorLavender).
					Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorSapphire).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	cardNormalStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1)

	cardSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				PaddingRight(1).
				Background(colorSurface0)

	panelBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)

	panelBoxFocusedStyle = panelBoxStyle.
				BorderForeground(colorAccent)

	statusPillOKStyle = lipgloss.NewStyle().
				Foreground(colorMantle).
				Background(colorGreen).
				Bold(true).
				Padding(0, 1)

	statusPillBusyStyle = lipgloss.NewStyle().
				Foreground(colorMantle).
				Background(colorYellow).
				Bold(true).
				Padding(0, 1)

	statusPillCritStyle = lipgloss.NewStyle().
				Foreground(colorMantle).
				Background(colorRed).
				Bold(true).
				Padding(0, 1)

	statusPillDimStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(colorSurface1).
				Padding(0, 1)

	notificationErrorStyle = lipgloss.NewStyle().
				Foreground(colorMantle).
				Background(colorRed).
				Padding(0, 1)

	notificationInfoStyle = lipgloss.NewStyle().
				Foreground(colorMantle).
				Background(colorTeal).
				Padding(0, 1)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorSubtext).
				Padding(0, 1)

	tableCellStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Padding(0, 1)

	tableMissingStyle = tableCellStyle.
				Foreground(colorDim)

	chartAxisStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	chartLabelStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)
)

// providerColorMap assigns an accent color to each integration.
var providerColorMap = map[string]lipgloss.Color{
	"notion":   colorText,
	"airtable": colorSky,
	"hubspot":  colorPeach,
}

// typeColorPalette cycles through colors for the record-type chart.
var typeColorPalette = []lipgloss.Color{
	colorPeach, colorTeal, colorSapphire, colorGreen,
	colorYellow, colorLavender, colorSky, colorAccent,
}

// ProviderColor returns the accent color for a provider slug.
func ProviderColor(slug string) lipgloss.Color {
	if c, ok := providerColorMap[slug]; ok {
		return c
	}
	return colorSubtext
}

func typeColor(idx int) lipgloss.Color {
	if idx < 0 {
		idx = 0
	}
	return typeColorPalette[idx%len(typeColorPalette)]
}

// ConnectionPill renders the connection state as a filled badge.
func ConnectionPill(s core.ConnectionState) string {
	switch s {
	case core.StateConnected:
		return statusPillOKStyle.Render("CONNECTED")
	case core.StateConnecting:
		return statusPillBusyStyle.Render("CONNECTING")
	case core.StateExchanging:
		return statusPillBusyStyle.Render("EXCHANGING")
	default:
		return statusPillDimStyle.Render("DISCONNECTED")
	}
}

// PhasePill renders the data panel phase.
func PhasePill(p session.Phase) string {
	switch p {
	case session.PhaseLoaded:
		return statusPillOKStyle.Render("LOADED")
	case session.PhaseLoading:
		return statusPillBusyStyle.Render("LOADING")
	case session.PhaseFailed:
		return statusPillCritStyle.Render("FAILED")
	default:
		return statusPillDimStyle.Render("NOT LOADED")
	}
}

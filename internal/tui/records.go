package tui

import (
	"sort"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/samber/lo"
)

const (
	maxCellWidth  = 36
	minCellWidth  = 6
	maxChartWidth = 40
	minChartWidth = 16
	maxChartTypes = 6
)

// recordRows turns records into table rows, one per record, with missing
// fields shown as the placeholder and long values cut to maxCell columns.
func recordRows(records []core.Record, maxCell int) [][]string {
	if maxCell < minCellWidth {
		maxCell = minCellWidth
	}
	return lo.Map(records, func(r core.Record, _ int) []string {
		return lo.Map(r.Cells(), func(cell string, _ int) string {
			return ansi.Truncate(cell, maxCell, "…")
		})
	})
}

func renderRecordsTable(records []core.Record, width int) string {
	cell := maxCellWidth
	if width > 0 {
		// Five columns, each padded by one on both sides, plus borders.
		if fit := (width-len(core.RecordColumns)-1)/len(core.RecordColumns) - 2; fit < cell {
			cell = fit
		}
	}
	rows := recordRows(records, cell)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorSurface1)).
		Headers(core.RecordColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(rows) && rows[row][col] == core.MissingValue {
				return tableMissingStyle
			}
			return tableCellStyle
		})
	return t.String()
}

type typeCount struct {
	name  string
	count int
}

// sortedTypeCounts orders by count, then name, keeping the largest limit
// entries.
func sortedTypeCounts(counts map[string]int, limit int) []typeCount {
	items := lo.MapToSlice(counts, func(name string, count int) typeCount {
		return typeCount{name: name, count: count}
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].name < items[j].name
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func chartWidth(available int) int {
	w := available / 3
	if w > maxChartWidth {
		w = maxChartWidth
	}
	return w
}

// renderTypeChart draws a bar per record type. It returns "" when there is
// not enough room or nothing to draw.
func renderTypeChart(counts map[string]int, width, height int) string {
	if len(counts) == 0 || width < minChartWidth || height < 4 {
		return ""
	}
	items := sortedTypeCounts(counts, maxChartTypes)
	labelW := width/len(items) - 1
	if labelW < 1 {
		labelW = 1
	}

	data := make([]barchart.BarData, 0, len(items))
	for i, it := range items {
		data = append(data, barchart.BarData{
			Label: ansi.Truncate(it.name, labelW, ""),
			Values: []barchart.BarValue{{
				Name:  it.name,
				Value: float64(it.count),
				Style: lipgloss.NewStyle().Foreground(typeColor(i)),
			}},
		})
	}

	bc := barchart.New(width, height,
		barchart.WithDataSet(data),
		barchart.WithStyles(chartAxisStyle, chartLabelStyle),
		barchart.WithBarGap(1),
	)
	bc.Draw()
	return chartLabelStyle.Render("By type") + "\n" + bc.View()
}

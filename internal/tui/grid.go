package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/pointcount/internal/export"
	"github.com/verte-zerg/pointcount/internal/model"
)

var gridColumns = []table.Column{
	{Title: "Input", Width: 5},
	{Title: "Component", Width: 18},
	{Title: "Count", Width: 7},
	{Title: "Percent", Width: 8},
}

func buildGrid(tally model.Tally) table.Model {
	rows := gridRows(tally)
	t := table.New(
		table.WithColumns(gridColumns),
		table.WithRows(rows),
		table.WithFocused(false),
	)
	t.SetStyles(gridStyles())
	// Header line plus its bottom border.
	t.SetHeight(len(rows) + 2)
	return t
}

// gridRows renders one row per category followed by the total row.
func gridRows(tally model.Tally) []table.Row {
	rows := make([]table.Row, 0, len(tally.Rows)+1)
	for _, r := range tally.Rows {
		rows = append(rows, table.Row{
			r.Key,
			r.Label,
			strconv.Itoa(r.Count),
			export.FormatPercent(r.Percent),
		})
	}
	rows = append(rows, table.Row{
		"",
		tally.TotalLabel,
		strconv.Itoa(tally.TotalCount),
		export.FormatPercent(tally.TotalPercent),
	})
	return rows
}

func gridStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	// No row cursor: the grid is display-only.
	styles.Selected = lipgloss.NewStyle()
	return styles
}

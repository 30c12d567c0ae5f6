package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// TableStyles returns the bubbles table styles used across the CLI and console.
func TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	s.Selected = s.Selected.
		Foreground(ColorPrimary).
		Background(ColorMuted).
		Bold(false)
	return s
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row, focused bool) table.Model {
	t := table.New(
		table.WithColumns(Columns(columns)),
		table.WithRows(rows),
		table.WithFocused(focused),
		table.WithHeight(len(rows)+1), // +1 for header
	)
	t.SetStyles(TableStyles())
	return t
}

// Columns converts column definitions to bubbles columns.
func Columns(columns []TableColumn) []table.Column {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}
	return cols
}

// RenderSimpleTable renders a non-interactive table string.
// This is for CLI output (not TUI), producing a simple formatted table.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := NewTable(columns, tableRows, false)
	return t.View()
}

// FitColumns widens each column to its longest cell, capped at max.
// Titles set the minimum width.
func FitColumns(titles []string, rows [][]string, max int) []TableColumn {
	cols := make([]TableColumn, len(titles))
	for i, title := range titles {
		cols[i] = TableColumn{Title: title, Width: lipgloss.Width(title)}
	}
	for _, row := range rows {
		for i := range cols {
			if i >= len(row) {
				continue
			}
			if w := lipgloss.Width(row[i]); w > cols[i].Width {
				cols[i].Width = w
			}
		}
	}
	for i := range cols {
		if max > 0 && cols[i].Width > max {
			cols[i].Width = max
		}
	}
	return cols
}

// KeyValue is one line of a RenderKeyValues block.
type KeyValue struct {
	Key   string
	Value string
}

// RenderKeyValues renders aligned "key  value" lines.
func RenderKeyValues(pairs []KeyValue) string {
	width := 0
	for _, p := range pairs {
		if w := lipgloss.Width(p.Key); w > width {
			width = w
		}
	}

	keyStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(keyStyle.Render(padRight(p.Key, width)))
		b.WriteString("  ")
		b.WriteString(p.Value)
		b.WriteString("\n")
	}
	return b.String()
}

// Truncate shortens s to width cells, adding an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if width == 1 {
		return "…"
	}
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func init() {
	DisableColors()
}

func TestStatusBadge(t *testing.T) {
	assert.Equal(t, "● ok", StatusBadge("ok"))
	assert.Equal(t, "✗ down", StatusBadge("down"))
	assert.Equal(t, "○ unknown", StatusBadge("unknown"))
}

func TestStatusAndRiskColors(t *testing.T) {
	assert.Equal(t, ColorSuccess, StatusColor("ok"))
	assert.Equal(t, ColorError, StatusColor("down"))
	assert.Equal(t, ColorMuted, StatusColor("weird"))

	assert.Equal(t, ColorError, RiskColor("high"))
	assert.Equal(t, ColorWarning, RiskColor("medium"))
	assert.Equal(t, ColorSuccess, RiskColor("low"))
	assert.Equal(t, "low", RiskBadge(""))
	assert.Equal(t, "high", RiskBadge("high"))
}

func TestSuccessFailure(t *testing.T) {
	assert.Equal(t, "✓ saved", Success("saved"))
	assert.Equal(t, "✗ nope", Failure("nope"))
}

func TestRenderSimpleTable(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 3}}, nil))

	out := RenderSimpleTable(
		[]TableColumn{{Title: "NAME", Width: 8}, {Title: "IP", Width: 10}},
		[][]string{{"pg-01", "10.0.0.5"}},
	)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "pg-01")
	assert.Contains(t, out, "10.0.0.5")
}

func TestNewTable_Focus(t *testing.T) {
	tbl := NewTable([]TableColumn{{Title: "A", Width: 3}}, []table.Row{{"x"}, {"y"}}, true)
	assert.True(t, tbl.Focused())
	assert.Equal(t, 0, tbl.Cursor())
}

func TestFitColumns(t *testing.T) {
	cols := FitColumns([]string{"ID", "NAME"}, [][]string{{"abc", "x"}, {"a", "a-much-longer-name"}}, 10)
	assert.Equal(t, 3, cols[0].Width)
	assert.Equal(t, 10, cols[1].Width)
	assert.Equal(t, "NAME", cols[1].Title)
}

func TestRenderKeyValues(t *testing.T) {
	out := RenderKeyValues([]KeyValue{{"id", "r1"}, {"server", "s1"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, []string{"id      r1", "server  s1"}, lines)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel…", Truncate("hello", 4))
	assert.Equal(t, "…", Truncate("hello", 1))
	assert.Equal(t, "hello", Truncate("hello", 0))
}

func TestBubbleSpinner(t *testing.T) {
	sp := NewBubbleSpinner()
	assert.Equal(t, SpinnerFrames.Frames, sp.Spinner.Frames)
}

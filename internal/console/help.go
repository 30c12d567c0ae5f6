package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/pgai/internal/ui"
)

// HelpBinding represents a single keyboard shortcut entry.
type HelpBinding struct {
	Key  string
	Desc string
}

// helpBindings defines all keyboard shortcuts shown in the help overlay.
var helpBindings = []HelpBinding{
	{Key: "q / Ctrl+C", Desc: "Quit"},
	{Key: "up / k", Desc: "Previous server or option"},
	{Key: "down / j", Desc: "Next server or option"},
	{Key: "Enter", Desc: "Expand server (probes databases)"},
	{Key: "Space", Desc: "Toggle database or block"},
	{Key: "c", Desc: "Collect a report"},
	{Key: "t", Desc: "Test connection (re-probe)"},
	{Key: "l", Desc: "Open latest report"},
	{Key: "v", Desc: "Show open report"},
	{Key: "R", Desc: "Refresh report actions"},
	{Key: "d", Desc: "Download raw report"},
	{Key: "a", Desc: "Add server"},
	{Key: "r", Desc: "Reload server list"},
	{Key: "Esc", Desc: "Back / close"},
	{Key: "?", Desc: "Toggle this help"},
}

// Help overlay styles
var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorAccent).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true).
			MarginBottom(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true).
			Width(14)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSecondary)
)

// renderHelpOverlay renders a centered help box with keyboard shortcuts.
func (m Model) renderHelpOverlay() string {
	var lines []string
	lines = append(lines, helpTitleStyle.Render("Keyboard Shortcuts"))
	lines = append(lines, "")

	for _, binding := range helpBindings {
		lines = append(lines, helpKeyStyle.Render(binding.Key)+helpDescStyle.Render(binding.Desc))
	}

	lines = append(lines, "")
	lines = append(lines, LabelStyle.Render("Press ? to close"))

	helpBox := helpBoxStyle.Render(strings.Join(lines, "\n"))
	if m.width == 0 || m.height == 0 {
		return helpBox
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, helpBox)
}

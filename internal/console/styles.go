package console

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/pgai/internal/ui"
)

// Base styles for the console
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorMuted).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true)

	CursorStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSuccess)

	ErrorNoticeStyle = lipgloss.NewStyle().
				Foreground(ui.ColorError).
				Bold(true)
)

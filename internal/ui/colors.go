package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
	ColorAccent    lipgloss.Color = "5" // Magenta
)

// GradientColors cycle through the CLI spinner frames.
var GradientColors = []lipgloss.Color{ColorAccent, ColorSecondary, ColorInfo, ColorSuccess}

// Color modes accepted by ConfigureColors.
const (
	ColorModeAuto   = "auto"
	ColorModeAlways = "always"
	ColorModeNever  = "never"
)

// DisableColors switches lipgloss to monochrome output (for --no-color).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ConfigureColors applies an output.color mode. "auto" keeps color only when
// stdout is a terminal and NO_COLOR is unset.
func ConfigureColors(mode string) {
	switch mode {
	case ColorModeNever:
		DisableColors()
	case ColorModeAlways:
		lipgloss.SetColorProfile(termenv.ANSI256)
	default:
		if os.Getenv("NO_COLOR") != "" || !IsTerminal(os.Stdout) {
			DisableColors()
		}
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// StatusColor maps a server status to its color.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "ok":
		return ColorSuccess
	case "down":
		return ColorError
	default:
		return ColorMuted
	}
}

// StatusBadge renders a server status with its symbol, e.g. "● ok".
func StatusBadge(status string) string {
	symbol := SymbolPending
	switch status {
	case "ok":
		symbol = SymbolComplete
	case "down":
		symbol = SymbolFail
	}
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(symbol + " " + status)
}

// RiskColor maps a recommendation risk level to its color.
func RiskColor(risk string) lipgloss.Color {
	switch risk {
	case "high":
		return ColorError
	case "medium":
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// RiskBadge renders a risk level in its color.
func RiskBadge(risk string) string {
	if risk == "" {
		risk = "low"
	}
	return lipgloss.NewStyle().Foreground(RiskColor(risk)).Bold(risk == "high").Render(risk)
}

// Muted renders secondary text.
func Muted(s string) string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Render(s)
}

// Success renders a "✓ message" line.
func Success(msg string) string {
	return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolSuccess) + " " + msg
}

// Failure renders a "✗ message" line.
func Failure(msg string) string {
	return lipgloss.NewStyle().Foreground(ColorError).Render(SymbolFail) + " " + msg
}

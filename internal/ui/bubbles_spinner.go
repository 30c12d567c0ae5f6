package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames defines the animation frames (◐ ◓ ◑ ◒) for Bubble Tea programs,
// matching the symbols used in plain CLI output.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// NewBubbleSpinner returns a spinner model styled for the console. Embed it in
// a model and forward spinner.TickMsg to its Update.
func NewBubbleSpinner() spinner.Model {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return sp
}

package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Run shows label with a spinner on w while fn runs, then replaces it with a
// success or failure line carrying the elapsed time. When w is not a terminal
// only the final line is written, so piped output stays clean.
func Run(w io.Writer, label string, fn func() error) error {
	f, ok := w.(*os.File)
	return run(w, ok && IsTerminal(f), label, fn)
}

func run(w io.Writer, animated bool, label string, fn func() error) error {
	ln := &spinLine{w: w, label: label, start: time.Now()}
	if animated {
		stop := make(chan struct{})
		done := make(chan struct{})
		ln.draw(0)
		go ln.animate(stop, done)
		defer func() {
			close(stop)
			<-done
		}()
	}

	err := fn()
	ln.finish(err)
	return err
}

type spinLine struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	start time.Time
	width int
	ended bool
}

func (l *spinLine) animate(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(SpinnerFrames.FPS)
	defer ticker.Stop()
	for frame := 1; ; frame++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.draw(frame)
		}
	}
}

func (l *spinLine) draw(frame int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended {
		return
	}
	symbol := SpinnerFrames.Frames[frame%len(SpinnerFrames.Frames)]
	color := GradientColors[frame%len(GradientColors)]
	line := fmt.Sprintf("%s %s...", lipgloss.NewStyle().Foreground(color).Render(symbol), l.label)
	l.clear()
	io.WriteString(l.w, line)
	l.width = lipgloss.Width(line)
}

// finish writes the final line. Later frames from the animation are ignored.
func (l *spinLine) finish(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = true

	symbol, style := SymbolComplete, lipgloss.NewStyle().Foreground(ColorSuccess)
	if err != nil {
		symbol, style = SymbolFail, lipgloss.NewStyle().Foreground(ColorError)
	}
	l.clear()
	fmt.Fprintf(l.w, "%s %s %s\n", style.Render(symbol), l.label,
		lipgloss.NewStyle().Foreground(ColorMuted).Render(formatElapsed(time.Since(l.start))))
}

func (l *spinLine) clear() {
	if l.width > 0 {
		io.WriteString(l.w, "\r"+strings.Repeat(" ", l.width)+"\r")
	}
}

// formatElapsed renders d as "0.05s" under a tenth of a second, else "1.2s".
func formatElapsed(d time.Duration) string {
	if secs := d.Seconds(); secs >= 0.1 {
		return fmt.Sprintf("%.1fs", secs)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

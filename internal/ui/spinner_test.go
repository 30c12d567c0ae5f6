package ui

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Buffer(t *testing.T) {
	var buf strings.Builder
	err := Run(&buf, "Loading servers", func() error { return nil })
	require.NoError(t, err)
	assert.Contains(t, buf.String(), SymbolComplete)
	assert.Contains(t, buf.String(), "Loading servers")

	buf.Reset()
	err = Run(&buf, "Loading servers", func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, buf.String(), SymbolFail)
}

func TestRun_PipeWritesFinalLineOnly(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	err = Run(w, "Collecting", func() error {
		time.Sleep(3 * SpinnerFrames.FPS)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "\n"))
	assert.Contains(t, string(out), "Collecting")
	assert.NotContains(t, string(out), "\r")
	assert.NotContains(t, string(out), "...")
}

func TestRun_TerminalAnimatesThenClears(t *testing.T) {
	var buf strings.Builder
	err := run(&buf, true, "Probing databases", func() error {
		time.Sleep(3 * SpinnerFrames.FPS)
		return nil
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, SpinnerFrames.Frames[0])
	assert.Contains(t, out, "Probing databases...")
	assert.Contains(t, out, "\r", "frames overwrite each other")
	assert.True(t, strings.HasSuffix(out, "\n"))

	last := out[strings.LastIndex(out, "\r")+1:]
	assert.Contains(t, last, SymbolComplete)
	assert.NotContains(t, last, "...")
}

func TestRun_TerminalFailure(t *testing.T) {
	var buf strings.Builder
	err := run(&buf, true, "Collecting", func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)

	out := buf.String()
	last := out[strings.LastIndex(out, "\r")+1:]
	assert.Contains(t, last, SymbolFail)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSpinnerFrames(t *testing.T) {
	assert.Equal(t, []string{"◐", "◓", "◑", "◒"}, SpinnerFrames.Frames)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.00s"},
		{50 * time.Millisecond, "0.05s"},
		{100 * time.Millisecond, "0.1s"},
		{1500 * time.Millisecond, "1.5s"},
		{10 * time.Second, "10.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatElapsed(tt.d))
		})
	}
}

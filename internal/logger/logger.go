// Package logger provides a simple logging interface for pgai components.
// It allows packages to log debug, info, warn, and error messages without
// being coupled to a specific logging implementation. The default
// implementation is backed by zap and writes to stderr so that it never
// interleaves with command output or the console TUI on stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "PGAI_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// zapLogger implements Logger on top of a zap.SugaredLogger.
type zapLogger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// NewEnvLogger creates a stderr logger that respects the PGAI_DEBUG environment
// variable. The prefix is prepended to all log messages (e.g., "[api]").
func NewEnvLogger(prefix string) Logger {
	return New(os.Stderr, prefix, os.Getenv(DebugEnv) != "")
}

// New creates a logger writing console-encoded lines to w. Debug messages are
// dropped unless debug is true.
func New(w io.Writer, prefix string, debug bool) Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zapcore.EncoderConfig{
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)

	return &zapLogger{
		prefix: prefix,
		sugar:  zap.New(core).Sugar(),
	}
}

func (l *zapLogger) format(format string, args []interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		return msg
	}
	return l.prefix + " " + msg
}

func (l *zapLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debug(l.format(format, args))
}

func (l *zapLogger) Info(format string, args ...interface{}) {
	l.sugar.Info(l.format(format, args))
}

func (l *zapLogger) Warn(format string, args ...interface{}) {
	l.sugar.Warn(l.format(format, args))
}

func (l *zapLogger) Error(format string, args ...interface{}) {
	l.sugar.Error(l.format(format, args))
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Safe for concurrent use since gateway calls log from tea.Cmd goroutines.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args) }

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.Messages))
	copy(out, l.Messages)
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewEnvLogger("")
)

// Default returns the default logger for the package.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger for the package.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

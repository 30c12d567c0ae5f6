package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig = "CONFIG"
	ErrAPI    = "API"
	ErrAgent  = "AGENT"
	ErrSSH    = "SSH"
	ErrInput  = "INPUT"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrAPI code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrAPI,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// Detailer is implemented by errors that carry a human-readable message
// supplied by the remote service.
type Detailer interface {
	RemoteDetail() string
}

// Notice reduces err to the single line shown to the operator in a transient
// notice. Preference order: remote-provided detail, then the structured message,
// then the plain error string.
func Notice(err error) string {
	if err == nil {
		return ""
	}

	var d Detailer
	if errors.As(err, &d) {
		if detail := strings.TrimSpace(d.RemoteDetail()); detail != "" {
			return detail
		}
	}

	var pgErr *Error
	if errors.As(err, &pgErr) {
		if pgErr.Cause != nil {
			if cause := firstLine(pgErr.Cause.Error()); cause != "" {
				return pgErr.Message + ": " + cause
			}
		}
		return pgErr.Message
	}

	if msg := firstLine(err.Error()); msg != "" {
		return msg
	}
	return fmt.Sprintf("%v", err)
}

func firstLine(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "✗"))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

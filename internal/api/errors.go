package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrorKind classifies gateway failures.
type ErrorKind int

const (
	// KindTransport covers network failures, timeouts and an open circuit.
	KindTransport ErrorKind = iota
	// KindValidation is a 4xx answer, usually with a detail message.
	KindValidation
	// KindUnavailable means the monitored agent could not be reached.
	KindUnavailable
	// KindServer is any other 5xx answer.
	KindServer
	// KindDecode means the response body did not match the contract.
	KindDecode
)

// String returns a short label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindUnavailable:
		return "unavailable"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is wrapped when the breaker rejects a request without sending it.
var ErrCircuitOpen = errors.New("pgai service is failing, requests paused")

// Error is returned by every Client operation.
type Error struct {
	Op         string // e.g. "list servers"
	Kind       ErrorKind
	StatusCode int    // 0 for transport errors
	Detail     string // remote-provided message, if any
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		fmt.Fprintf(&b, "HTTP %d: %s", e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String() + " error")
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoteDetail exposes the service's message for operator notices.
func (e *Error) RemoteDetail() string {
	return e.Detail
}

// KindOf returns the kind of a gateway error, or KindTransport for anything else.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransport
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnavailable reports whether err means the agent is unreachable.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// retryable reports whether a GET that failed with err is worth repeating.
func retryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindTransport:
		return !errors.Is(err, ErrCircuitOpen)
	case KindServer:
		return apiErr.StatusCode == http.StatusBadGateway ||
			apiErr.StatusCode == http.StatusServiceUnavailable ||
			apiErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// tripsBreaker reports whether err counts against the circuit breaker.
// Validation failures are the caller's fault, not the service's.
func tripsBreaker(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindServer:
		return true
	default:
		return false
	}
}

// parseDetail extracts a human-readable message from an error body. The
// service answers {"detail": "..."} or, for schema errors, {"detail": [{"loc":
// [...], "msg": "..."}]}. Falls back to a trimmed plain-text body.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil {
			return strings.TrimSpace(s)
		}

		var items []struct {
			Loc []interface{} `json:"loc"`
			Msg string        `json:"msg"`
		}
		if json.Unmarshal(envelope.Detail, &items) == nil {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg == "" {
					continue
				}
				if n := len(it.Loc); n > 0 {
					parts = append(parts, fmt.Sprintf("%v: %s", it.Loc[n-1], it.Msg))
				} else {
					parts = append(parts, it.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
		return strings.TrimSpace(string(envelope.Detail))
	}

	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		return ""
	}
	const maxRunes = 200
	if utf8.RuneCountInString(text) > maxRunes {
		text = string([]rune(text)[:maxRunes]) + "..."
	}
	return text
}

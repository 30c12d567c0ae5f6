package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrAPI,
		ErrAgent,
		ErrSSH,
		ErrInput,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in .pgai.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "agent error",
			code:       ErrAgent,
			message:    "Agent on pg-01 is unreachable",
			suggestion: "Check that pgai-agent is running on the server",
		},
		{
			name:       "input error",
			code:       ErrInput,
			message:    "Server name is required",
			suggestion: "Pass --name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("dial tcp 10.0.0.5:8000: connection refused")
	err := WrapWithCode(cause, ErrAPI, "Couldn't reach the pgai service", "Check --api-url")

	out := err.Error()
	assert.True(t, strings.HasPrefix(out, "✗ Couldn't reach the pgai service\n"))
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "Check --api-url")

	bare := New(ErrInput, "Missing name", "")
	assert.Equal(t, "✗ Missing name\n", bare.Error())
}

func TestWrap_DefaultsToAPICode(t *testing.T) {
	err := Wrap(errors.New("boom"), "request failed")
	assert.Equal(t, ErrAPI, err.Code)
	assert.EqualError(t, errors.Unwrap(err), "boom")
}

func TestIsCode(t *testing.T) {
	err := New(ErrSSH, "bad key", "")
	wrapped := fmt.Errorf("install: %w", err)

	assert.True(t, IsCode(err, ErrSSH))
	assert.True(t, IsCode(wrapped, ErrSSH))
	assert.False(t, IsCode(wrapped, ErrConfig))
	assert.False(t, IsCode(errors.New("plain"), ErrSSH))
	assert.False(t, IsCode(nil, ErrSSH))
}

type remoteErr struct{ detail string }

func (e remoteErr) Error() string        { return "HTTP 422" }
func (e remoteErr) RemoteDetail() string { return e.detail }

func TestNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "remote detail wins",
			err:  WrapWithCode(remoteErr{detail: "server not found"}, ErrAPI, "Collect failed", ""),
			want: "server not found",
		},
		{
			name: "empty remote detail falls back to structured message",
			err:  WrapWithCode(remoteErr{detail: "  "}, ErrAPI, "Collect failed", ""),
			want: "Collect failed: HTTP 422",
		},
		{
			name: "structured message without cause",
			err:  New(ErrInput, "IP is required", "Pass --ip"),
			want: "IP is required",
		},
		{
			name: "plain error uses first line",
			err:  errors.New("dial tcp: timeout\nmore context"),
			want: "dial tcp: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Notice(tt.err))
		})
	}
}

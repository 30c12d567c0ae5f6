package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/onboard"
)

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
// These map to specific actions automation can take.
const (
	ErrCodeConfigNotFound     = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid      = "CONFIG_INVALID"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeSSHKey             = "SSH_KEY_INVALID"
	ErrCodeAgentInstall       = "AGENT_INSTALL_FAILED"
	ErrCodeServiceUnreachable = "SERVICE_UNREACHABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAgentUnavailable   = "AGENT_UNAVAILABLE"
	ErrCodeServiceError       = "SERVICE_ERROR"
	ErrCodeBadResponse        = "BAD_RESPONSE"
	ErrCodeUnknown            = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	env := JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
// A structured error keeps its message and suggestion; a gateway error found
// anywhere in the chain refines the code and adds its details.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	out := &JSONError{Code: ErrCodeUnknown, Message: errors.Notice(err)}

	var pgErr *errors.Error
	if stderrors.As(err, &pgErr) {
		out.Code = mapErrorCode(pgErr.Code, pgErr.Message)
		out.Message = pgErr.Message
		out.Suggestion = pgErr.Suggestion
	}

	var apiErr *api.Error
	if stderrors.As(err, &apiErr) {
		if out.Code == ErrCodeUnknown || pgErr == nil || pgErr.Code == errors.ErrAPI ||
			apiErr.StatusCode == http.StatusNotFound {
			out.Code = apiErrorCode(apiErr)
		}
		if pgErr == nil {
			out.Message = errors.Notice(apiErr)
		}
		details := map[string]interface{}{
			"op":   apiErr.Op,
			"kind": apiErr.Kind.String(),
		}
		if apiErr.StatusCode != 0 {
			details["status"] = apiErr.StatusCode
		}
		if apiErr.Detail != "" {
			details["detail"] = apiErr.Detail
		}
		out.Details = details
	}

	var fieldErr *onboard.FieldError
	if stderrors.As(err, &fieldErr) {
		out.Code = ErrCodeInvalidInput
		out.Details = map[string]interface{}{
			"field":  fieldErr.Field,
			"reason": fieldErr.Message,
		}
	}

	return out
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		// Distinguish between not found and invalid
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") || strings.Contains(msgLower, "couldn't find") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrInput:
		return ErrCodeInvalidInput
	case errors.ErrSSH:
		return ErrCodeSSHKey
	case errors.ErrAgent:
		return ErrCodeAgentInstall
	case errors.ErrAPI:
		return ErrCodeServiceError
	}

	return ErrCodeUnknown
}

// apiErrorCode maps a gateway error kind to a machine-readable code.
func apiErrorCode(e *api.Error) string {
	if e.StatusCode == http.StatusNotFound {
		return ErrCodeNotFound
	}
	switch e.Kind {
	case api.KindTransport:
		return ErrCodeServiceUnreachable
	case api.KindValidation:
		return ErrCodeValidationFailed
	case api.KindUnavailable:
		return ErrCodeAgentUnavailable
	case api.KindDecode:
		return ErrCodeBadResponse
	default:
		return ErrCodeServiceError
	}
}

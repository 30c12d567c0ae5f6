package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ServerStatus is the health the service last recorded for a server.
type ServerStatus string

const (
	StatusOK      ServerStatus = "ok"
	StatusDown    ServerStatus = "down"
	StatusUnknown ServerStatus = "unknown"
)

// ParseServerStatus maps any unrecognised value to StatusUnknown.
func ParseServerStatus(s string) ServerStatus {
	switch ServerStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOK:
		return StatusOK
	case StatusDown:
		return StatusDown
	default:
		return StatusUnknown
	}
}

// UnmarshalJSON normalises the status enum.
func (s *ServerStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseServerStatus(raw)
	return nil
}

// Risk is the severity attached to a recommendation.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// ParseRisk maps absent or unrecognised values to RiskLow.
func ParseRisk(s string) Risk {
	switch Risk(strings.ToLower(strings.TrimSpace(s))) {
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	default:
		return RiskLow
	}
}

// UnmarshalJSON normalises the risk enum. null and non-string values read as low.
func (r *Risk) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*r = RiskLow
		return nil
	}
	*r = ParseRisk(raw)
	return nil
}

// Rank orders risks for sorting, higher is more severe.
func (r Risk) Rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Timestamp accepts the naive ISO-8601 datetimes the service emits
// (no zone, microsecond precision) as well as RFC 3339. Naive values are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON parses any of the accepted layouts.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

// MarshalJSON writes RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Server is a monitored database server registered with the service.
type Server struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	IP        string       `json:"ip"`
	AgentURL  string       `json:"agent_url"`
	Status    ServerStatus `json:"status"`
	CreatedAt Timestamp    `json:"created_at"`
}

// CreateServerRequest is the body of POST /api/servers.
type CreateServerRequest struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	AgentURL string `json:"agent_url,omitempty"`
}

// SSHAuthType discriminates the SSHAuth variant.
type SSHAuthType string

const (
	SSHAuthPassword   SSHAuthType = "password"
	SSHAuthPrivateKey SSHAuthType = "private_key"
)

// SSHAuth is a tagged variant: exactly one of Password or PrivateKey is set,
// selected by Type.
type SSHAuth struct {
	Type       SSHAuthType `json:"type"`
	Password   string      `json:"password,omitempty"`
	PrivateKey string      `json:"private_key,omitempty"`
}

// PasswordAuth builds the password variant.
func PasswordAuth(password string) SSHAuth {
	return SSHAuth{Type: SSHAuthPassword, Password: password}
}

// PrivateKeyAuth builds the private-key variant from PEM text.
func PrivateKeyAuth(pem string) SSHAuth {
	return SSHAuth{Type: SSHAuthPrivateKey, PrivateKey: pem}
}

// Validate checks that the variant is well formed.
func (a SSHAuth) Validate() error {
	switch a.Type {
	case SSHAuthPassword:
		if a.Password == "" {
			return fmt.Errorf("ssh password is required")
		}
		if a.PrivateKey != "" {
			return fmt.Errorf("ssh auth type %q must not carry a private key", a.Type)
		}
	case SSHAuthPrivateKey:
		if strings.TrimSpace(a.PrivateKey) == "" {
			return fmt.Errorf("ssh private key is required")
		}
		if a.Password != "" {
			return fmt.Errorf("ssh auth type %q must not carry a password", a.Type)
		}
	default:
		return fmt.Errorf("unknown ssh auth type %q", a.Type)
	}
	return nil
}

// InstallAgentRequest is the body of POST /api/servers/{id}/install-agent.
type InstallAgentRequest struct {
	SSHUser string  `json:"ssh_user"`
	SSHPort int     `json:"ssh_port"`
	SSHAuth SSHAuth `json:"ssh_auth"`

	PGHost     string `json:"pg_host"`
	PGPort     int    `json:"pg_port"`
	PGUser     string `json:"pg_user"`
	PGPassword string `json:"pg_password"`
	PGDatabase string `json:"pg_database"`

	AgentPort     int    `json:"agent_port"`
	Model         string `json:"model"`
	MaxStatements int    `json:"max_statements"`
	OpenAIAPIKey  string `json:"openai_api_key"`
}

// CollectRequest is the body of POST /api/servers/{id}/collect.
type CollectRequest struct {
	Databases []string `json:"databases"`
	Blocks    []string `json:"blocks"`
}

// Report is the result of one collection run.
type Report struct {
	ID        string          `json:"id"`
	ServerID  string          `json:"server_id"`
	CreatedAt Timestamp       `json:"created_at"`
	Databases []string        `json:"databases,omitempty"`
	Blocks    []string        `json:"blocks,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// reportPayload is the part of the opaque payload the console reads.
type reportPayload struct {
	Selected json.RawMessage `json:"selected"`
	Notes    []string        `json:"notes"`
}

func (r Report) payload() reportPayload {
	var p reportPayload
	if len(r.Payload) > 0 {
		_ = json.Unmarshal(r.Payload, &p)
	}
	return p
}

// Notes returns payload.notes, or nil when absent or malformed.
func (r Report) Notes() []string {
	return r.payload().Notes
}

// Selected returns the raw payload.selected object, or nil when absent.
func (r Report) Selected() json.RawMessage {
	sel := r.payload().Selected
	if len(sel) == 0 || bytes.Equal(sel, []byte("null")) {
		return nil
	}
	return sel
}

// ReportAction is one recommendation derived from a report.
type ReportAction struct {
	ID       string          `json:"id"`
	ReportID string          `json:"report_id"`
	Type     string          `json:"type"`
	Target   string          `json:"target"`
	Risk     Risk            `json:"risk"`
	Reason   string          `json:"reason"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// UnmarshalJSON defaults Risk to low when the field is missing.
func (a *ReportAction) UnmarshalJSON(b []byte) error {
	type plain ReportAction
	p := plain{Risk: RiskLow}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = ReportAction(p)
	if a.Risk == "" {
		a.Risk = RiskLow
	}
	return nil
}

type databasesResponse struct {
	Databases []string `json:"databases"`
}

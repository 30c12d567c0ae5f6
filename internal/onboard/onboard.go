// Package onboard registers a new server and optionally asks the service to
// install the monitoring agent on it.
//
// Registration happens in two phases with no atomicity between them. Phase 1
// always creates the server record. Phase 2 runs only when the operator opts
// into SSH installation. A Phase 2 failure leaves the record in place with
// InstallFailed status; Install retries Phase 2 alone for an existing server.
package onboard

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/pkg/sshutil"
)

// DefaultAgentPort is the port the agent listens on unless configured.
const DefaultAgentPort = 8010

// MinAPIKeyLength is the shortest API key the service accepts.
const MinAPIKeyLength = 10

// InstallStatus is the outcome of Phase 2.
type InstallStatus string

const (
	InstallSkipped InstallStatus = "skipped"
	InstallDone    InstallStatus = "installed"
	InstallFailed  InstallStatus = "install_failed"
)

const retryCommandHint = "Retry with: pgai agent install %s"

// Gateway is the subset of the API client onboarding calls.
type Gateway interface {
	ListServers(ctx context.Context) ([]api.Server, error)
	CreateServer(ctx context.Context, req api.CreateServerRequest) (api.Server, error)
	InstallAgent(ctx context.Context, serverID string, req api.InstallAgentRequest) (*api.Server, error)
}

// Form is everything the operator fills in.
type Form struct {
	Name          string
	IP            string
	AgentURL      string
	InstallViaSSH bool
	Install       InstallParams
}

// InstallParams are the Phase 2 inputs.
type InstallParams struct {
	SSHUser    string
	SSHPort    int
	AuthType   api.SSHAuthType
	Password   string
	PrivateKey string

	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string

	AgentPort     int
	Model         string
	MaxStatements int
	OpenAIKey     string
}

// DefaultForm returns a blank form pre-filled with install defaults.
func DefaultForm(in config.InstallConfig) Form {
	return Form{Install: DefaultInstallParams(in)}
}

// DefaultInstallParams returns Phase 2 inputs pre-filled from config.
func DefaultInstallParams(in config.InstallConfig) InstallParams {
	p := InstallParams{
		SSHUser:       in.SSHUser,
		SSHPort:       in.SSHPort,
		AuthType:      api.SSHAuthPassword,
		PGHost:        in.PGHost,
		PGPort:        in.PGPort,
		PGUser:        in.PGUser,
		PGDatabase:    in.PGDatabase,
		AgentPort:     in.AgentPort,
		Model:         in.Model,
		MaxStatements: in.MaxStatements,
	}
	if in.KeyFile != "" {
		p.AuthType = api.SSHAuthPrivateKey
	}
	if p.AgentPort == 0 {
		p.AgentPort = DefaultAgentPort
	}
	return p
}

// FillSSHDefaults copies user and port from ~/.ssh/config entries matching
// host into fields the operator left at their defaults.
func (p *InstallParams) FillSSHDefaults(entry sshutil.SSHHostEntry) {
	if p.SSHUser == "" {
		p.SSHUser = entry.User
	}
	if p.SSHUser == "" {
		p.SSHUser = sshutil.CurrentUser()
	}
	if (p.SSHPort == 0 || p.SSHPort == sshutil.DefaultPort) && entry.Port != "" {
		p.SSHPort = entry.PortNumber()
	}
	if p.SSHPort == 0 {
		p.SSHPort = sshutil.DefaultPort
	}
}

// DefaultAgentURL is the agent address used when the operator leaves it blank.
func DefaultAgentURL(ip string, port int) string {
	if port == 0 {
		port = DefaultAgentPort
	}
	return "http://" + net.JoinHostPort(ip, strconv.Itoa(port))
}

// FieldError names the form field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, suggestion, format string, args ...interface{}) error {
	fe := &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
	return errors.WrapWithCode(fe, errors.ErrInput, "Invalid "+field, suggestion)
}

// validateHost accepts an IP address or an RFC 1123 host name.
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("required")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 {
		return fmt.Errorf("%q is too long for a host name", host)
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("%q is not a valid IP address or host name", host)
		}
		for _, c := range label {
			if !(c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
				return fmt.Errorf("%q is not a valid IP address or host name", host)
			}
		}
	}
	return nil
}

// Normalize trims whitespace and fills the default agent URL.
func (f Form) Normalize() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.IP = strings.TrimSpace(f.IP)
	f.AgentURL = strings.TrimRight(strings.TrimSpace(f.AgentURL), "/")
	if f.AgentURL == "" && f.IP != "" {
		f.AgentURL = DefaultAgentURL(f.IP, f.Install.AgentPort)
	}
	return f
}

// Validate checks the form without contacting anything. Install parameters
// are only checked when InstallViaSSH is set.
func (f Form) Validate() error {
	f = f.Normalize()
	if f.Name == "" {
		return invalid("name", "Give the server a display name, e.g. pg-01", "required")
	}
	if err := validateHost(f.IP); err != nil {
		return invalid("ip", "Use an IP address or a DNS name", "%v", err)
	}
	if err := config.ValidateURL(f.AgentURL); err != nil {
		return invalid("agent_url", "Leave it blank to use "+DefaultAgentURL(f.IP, f.Install.AgentPort), "%v", err)
	}
	if f.InstallViaSSH {
		return f.Install.Validate()
	}
	return nil
}

// Validate checks Phase 2 inputs: credentials, ports, Postgres DSN and the
// LLM settings.
func (p InstallParams) Validate() error {
	if strings.TrimSpace(p.SSHUser) == "" {
		return invalid("ssh_user", "Set install.ssh_user or a User in ~/.ssh/config", "required")
	}
	if err := config.ValidatePort(p.SSHPort); err != nil {
		return invalid("ssh_port", "", "%v", err)
	}

	switch p.AuthType {
	case api.SSHAuthPassword:
		if p.Password == "" {
			return invalid("ssh_password", "Enter the SSH password or switch to a private key", "required")
		}
	case api.SSHAuthPrivateKey:
		if _, err := sshutil.ParsePrivateKey([]byte(p.PrivateKey)); err != nil {
			suggestion := "Paste an OpenSSH or PEM private key"
			if enc, ok := err.(*sshutil.EncryptedKeyError); ok {
				suggestion = enc.Suggestion()
			}
			return invalid("ssh_private_key", suggestion, "%v", err)
		}
	default:
		return invalid("ssh_auth", "Pick password or private_key", "unknown auth type %q", p.AuthType)
	}

	if strings.TrimSpace(p.PGHost) == "" {
		return invalid("pg_host", "Use 127.0.0.1 when Postgres runs next to the agent", "required")
	}
	if err := config.ValidatePort(p.PGPort); err != nil {
		return invalid("pg_port", "", "%v", err)
	}
	if strings.TrimSpace(p.PGUser) == "" {
		return invalid("pg_user", "e.g. postgres", "required")
	}
	if strings.TrimSpace(p.PGDatabase) == "" {
		return invalid("pg_database", "e.g. postgres", "required")
	}
	if _, err := pgx.ParseConfig(p.DSN()); err != nil {
		return invalid("postgres", "Check pg_host, pg_user and pg_database", "%v", err)
	}

	if err := config.ValidatePort(p.AgentPort); err != nil {
		return invalid("agent_port", "", "%v", err)
	}
	if strings.TrimSpace(p.Model) == "" {
		return invalid("model", "e.g. gpt-4o-mini", "required")
	}
	if p.MaxStatements < 1 {
		return invalid("max_statements", "", "must be at least 1, got %d", p.MaxStatements)
	}
	if len(strings.TrimSpace(p.OpenAIKey)) < MinAPIKeyLength {
		return invalid("openai_api_key", "Set OPENAI_API_KEY or store it with: pgai config secret set openai_api_key",
			"must be at least %d characters", MinAPIKeyLength)
	}
	return nil
}

// DSN renders the Postgres parameters as a connection URL. The agent uses
// them on the monitored host; the console only checks that they parse.
func (p InstallParams) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.PGHost, strconv.Itoa(p.PGPort)),
		Path:   "/" + p.PGDatabase,
	}
	if p.PGPassword != "" {
		u.User = url.UserPassword(p.PGUser, p.PGPassword)
	} else {
		u.User = url.User(p.PGUser)
	}
	return u.String()
}

// Request builds the install-agent body. Call Validate first.
func (p InstallParams) Request() api.InstallAgentRequest {
	auth := api.PasswordAuth(p.Password)
	if p.AuthType == api.SSHAuthPrivateKey {
		auth = api.PrivateKeyAuth(p.PrivateKey)
	}
	return api.InstallAgentRequest{
		SSHUser:       strings.TrimSpace(p.SSHUser),
		SSHPort:       p.SSHPort,
		SSHAuth:       auth,
		PGHost:        p.PGHost,
		PGPort:        p.PGPort,
		PGUser:        p.PGUser,
		PGPassword:    p.PGPassword,
		PGDatabase:    p.PGDatabase,
		AgentPort:     p.AgentPort,
		Model:         strings.TrimSpace(p.Model),
		MaxStatements: p.MaxStatements,
		OpenAIAPIKey:  strings.TrimSpace(p.OpenAIKey),
	}
}

// Result describes what a submission did.
type Result struct {
	Server     api.Server
	Status     InstallStatus
	InstallErr error

	// Servers is the reloaded list; nil when ReloadErr is set.
	Servers   []api.Server
	ReloadErr error
}

// Notice is the one-line summary shown to the operator.
func (r Result) Notice() string {
	switch r.Status {
	case InstallDone:
		return fmt.Sprintf("Server %s created and agent installed", r.Server.Name)
	case InstallFailed:
		return fmt.Sprintf("Server %s created, agent install failed: %s", r.Server.Name, errors.Notice(r.InstallErr))
	default:
		return fmt.Sprintf("Server %s created", r.Server.Name)
	}
}

// Workflow runs submissions against the gateway.
type Workflow struct {
	gw  Gateway
	log logger.Logger
}

// New creates a workflow. A nil logger discards messages.
func New(gw Gateway, log logger.Logger) *Workflow {
	if log == nil {
		log = logger.Noop()
	}
	return &Workflow{gw: gw, log: log}
}

// Submit validates the form, creates the server and, when requested,
// installs the agent. The server list is reloaded afterwards whenever the
// server was created, so a half-configured server is visible.
//
// The error is non-nil when nothing was created, or when Phase 2 failed; in
// the latter case Result still carries the created server with InstallFailed.
func (w *Workflow) Submit(ctx context.Context, f Form) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	f = f.Normalize()

	srv, err := w.gw.CreateServer(ctx, api.CreateServerRequest{
		Name:     f.Name,
		IP:       f.IP,
		AgentURL: f.AgentURL,
	})
	if err != nil {
		return Result{}, errors.WrapWithCode(err, errors.ErrAPI,
			"Couldn't create server "+f.Name, "")
	}
	w.log.Info("created server %s (%s) id=%s", srv.Name, srv.IP, srv.ID)

	res := Result{Server: srv, Status: InstallSkipped}
	if f.InstallViaSSH {
		updated, err := w.install(ctx, srv.ID, f.Install)
		if err != nil {
			res.Status = InstallFailed
			res.InstallErr = err
		} else {
			res.Status = InstallDone
			if updated != nil {
				res.Server = *updated
			}
		}
	}

	res.Servers, res.ReloadErr = w.gw.ListServers(ctx)
	if res.ReloadErr != nil {
		w.log.Warn("reload after onboarding failed: %v", res.ReloadErr)
	}

	if res.InstallErr != nil {
		return res, res.InstallErr
	}
	return res, nil
}

// Install runs Phase 2 alone against an existing server.
func (w *Workflow) Install(ctx context.Context, serverID string, p InstallParams) (*api.Server, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return w.install(ctx, serverID, p)
}

func (w *Workflow) install(ctx context.Context, serverID string, p InstallParams) (*api.Server, error) {
	w.log.Info("installing agent on %s as %s@:%d", serverID, p.SSHUser, p.SSHPort)
	srv, err := w.gw.InstallAgent(ctx, serverID, p.Request())
	if err != nil {
		w.log.Warn("agent install on %s failed: %v", serverID, err)
		return nil, errors.WrapWithCode(err, errors.ErrAgent,
			"Agent install failed on server "+serverID,
			fmt.Sprintf(retryCommandHint, serverID))
	}
	return srv, nil
}

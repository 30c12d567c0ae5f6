package console

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/onboard"
	"github.com/rileyhilliard/pgai/pkg/sshutil"
)

// formValues backs the add-server form. huh binds to strings, so numeric
// fields are converted when the form is submitted.
type formValues struct {
	Name     string
	IP       string
	AgentURL string
	Install  bool

	SSHUser    string
	SSHPort    string
	AuthType   string
	Password   string
	KeyFile    string
	PGPassword string
	OpenAIKey  string

	defaults onboard.InstallParams
}

func newFormValues(cfg *config.Config) *formValues {
	p := onboard.DefaultInstallParams(cfg.Install)
	v := &formValues{
		SSHUser:  p.SSHUser,
		AuthType: string(p.AuthType),
		KeyFile:  cfg.Install.KeyFile,
		defaults: p,
	}
	if p.SSHPort > 0 {
		v.SSHPort = strconv.Itoa(p.SSHPort)
	}
	if key, err := config.Secret(config.SecretOpenAIKey); err == nil {
		v.OpenAIKey = key
	}
	if pw, err := config.Secret(config.SecretPGPassword); err == nil {
		v.PGPassword = pw
	}
	if pw, err := config.Secret(config.SecretSSHPassword); err == nil {
		v.Password = pw
	}
	return v
}

// toForm converts the collected strings into an onboarding form. Fields the
// operator left blank fall back to config defaults and ~/.ssh/config.
func (v *formValues) toForm(sshEntry sshutil.SSHHostEntry) (onboard.Form, error) {
	f := onboard.Form{
		Name:          v.Name,
		IP:            v.IP,
		AgentURL:      v.AgentURL,
		InstallViaSSH: v.Install,
		Install:       v.defaults,
	}
	if !v.Install {
		return f, nil
	}

	p := &f.Install
	p.SSHUser = strings.TrimSpace(v.SSHUser)
	if port := strings.TrimSpace(v.SSHPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return f, &onboard.FieldError{Field: "ssh_port", Message: "must be a number"}
		}
		p.SSHPort = n
	}
	p.FillSSHDefaults(sshEntry)

	p.AuthType = api.SSHAuthType(v.AuthType)
	switch p.AuthType {
	case api.SSHAuthPrivateKey:
		path := v.KeyFile
		if path == "" {
			path = sshEntry.IdentityFile
		}
		pem, _, err := sshutil.ReadPrivateKey(path)
		if err != nil {
			return f, err
		}
		p.PrivateKey = pem
		p.Password = ""
	default:
		p.Password = v.Password
		p.PrivateKey = ""
	}

	p.PGPassword = v.PGPassword
	p.OpenAIKey = v.OpenAIKey
	return f, nil
}

func buildForm(v *formValues) *huh.Form {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("pg-01").
				Value(&v.Name),
			huh.NewInput().
				Title("IP or hostname").
				Placeholder("10.0.0.5").
				Value(&v.IP),
			huh.NewInput().
				Title("Agent URL").
				Description("Blank uses http://<ip>:8010").
				Value(&v.AgentURL),
			huh.NewConfirm().
				Title("Install the agent over SSH?").
				Affirmative("Yes").
				Negative("No").
				Value(&v.Install),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SSH user").
				Value(&v.SSHUser),
			huh.NewInput().
				Title("SSH port").
				Placeholder("22").
				Value(&v.SSHPort),
			huh.NewSelect[string]().
				Title("SSH auth").
				Options(
					huh.NewOption("Password", string(api.SSHAuthPassword)),
					huh.NewOption("Private key", string(api.SSHAuthPrivateKey)),
				).
				Value(&v.AuthType),
		).WithHideFunc(func() bool { return !v.Install }),
		huh.NewGroup(
			huh.NewInput().
				Title("SSH password").
				EchoMode(huh.EchoModePassword).
				Value(&v.Password),
		).WithHideFunc(func() bool {
			return !v.Install || v.AuthType != string(api.SSHAuthPassword)
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Private key file").
				Placeholder("~/.ssh/id_ed25519").
				Value(&v.KeyFile),
		).WithHideFunc(func() bool {
			return !v.Install || v.AuthType != string(api.SSHAuthPrivateKey)
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Postgres password").
				EchoMode(huh.EchoModePassword).
				Value(&v.PGPassword),
			huh.NewInput().
				Title("OpenAI API key").
				EchoMode(huh.EchoModePassword).
				Value(&v.OpenAIKey),
		).WithHideFunc(func() bool { return !v.Install }),
	)
	return form.WithShowHelp(true)
}

func (m *Model) openForm() tea.Cmd {
	return m.showForm(newFormValues(m.cfg))
}

func (m *Model) showForm(v *formValues) tea.Cmd {
	m.formValues = v
	m.form = buildForm(v)
	m.viewMode = ViewAdd
	m.showHelp = false
	return m.form.Init()
}

func (m *Model) closeForm() {
	m.form = nil
	m.formValues = nil
	m.viewMode = ViewList
}

// updateForm forwards msg to the embedded form and submits it once complete.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.viewMode = ViewList
		return m, nil
	}

	model, cmd := m.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	case huh.StateCompleted:
		values := m.formValues
		m.closeForm()
		return m, m.submitValues(values)
	}
	return m, cmd
}

// submitValues validates v and starts onboarding. The values are kept as a
// draft until the server is created so a rejected submission can be edited.
func (m *Model) submitValues(v *formValues) tea.Cmd {
	m.draft = v
	f, err := v.toForm(sshutil.Lookup(strings.TrimSpace(v.IP)))
	if err != nil {
		return m.rejectDraft(err)
	}
	if err := f.Validate(); err != nil {
		return m.rejectDraft(err)
	}
	return m.submitCmd(f)
}

// rejectDraft reports err and reopens the form with the submitted values.
// A form the operator opened in the meantime is left alone.
func (m *Model) rejectDraft(err error) tea.Cmd {
	notice := m.fail("Couldn't add server", err)
	v := m.draft
	m.draft = nil
	if v == nil || m.viewMode == ViewAdd {
		return notice
	}
	return tea.Batch(notice, m.showForm(v))
}

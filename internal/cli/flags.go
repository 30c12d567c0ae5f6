package cli

import (
	"fmt"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/internal/onboard"
	"github.com/rileyhilliard/pgai/pkg/sshutil"
	"github.com/spf13/cobra"
)

// InstallFlags holds the agent install flags shared by "servers add" and
// "agent install". Zero values mean "use the config default".
type InstallFlags struct {
	SSHUser     string
	SSHPort     int
	SSHPassword string
	KeyFile     string

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

// AddInstallFlags registers the install flags on a command.
func AddInstallFlags(cmd *cobra.Command, f *InstallFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.SSHUser, "ssh-user", "", "SSH user (default: install.ssh_user, ~/.ssh/config, $USER)")
	fs.IntVar(&f.SSHPort, "ssh-port", 0, "SSH port (default: install.ssh_port or ~/.ssh/config)")
	fs.StringVar(&f.SSHPassword, "ssh-password", "", "SSH password (or keyring secret ssh_password)")
	fs.StringVar(&f.KeyFile, "ssh-key", "", "unencrypted private key file to upload instead of a password")
	fs.StringVar(&f.PGHost, "pg-host", "", "Postgres host as seen from the server (default 127.0.0.1)")
	fs.IntVar(&f.PGPort, "pg-port", 0, "Postgres port (default 5432)")
	fs.StringVar(&f.PGUser, "pg-user", "", "Postgres user (default postgres)")
	fs.StringVar(&f.PGPassword, "pg-password", "", "Postgres password (or keyring secret pg_password)")
	fs.StringVar(&f.PGDatabase, "pg-database", "", "Postgres database (default postgres)")
	fs.IntVar(&f.AgentPort, "agent-port", 0, "agent listen port (default 8010)")
	fs.StringVar(&f.Model, "model", "", "LLM model (default gpt-4o-mini)")
	fs.IntVar(&f.MaxStatements, "max-statements", 0, "max statements the agent analyses (default 50)")
	fs.StringVar(&f.OpenAIKey, "openai-key", "", "OpenAI API key (or OPENAI_API_KEY / keyring secret openai_api_key)")
}

// Params resolves the install parameters for host: flags first, then the
// config file, the keyring and ~/.ssh/config.
func (f InstallFlags) Params(cfg *config.Config, entry sshutil.SSHHostEntry, log logger.Logger) (onboard.InstallParams, error) {
	p := onboard.DefaultInstallParams(cfg.Install)

	if f.SSHUser != "" {
		p.SSHUser = f.SSHUser
	}
	if f.SSHPort != 0 {
		p.SSHPort = f.SSHPort
	}
	p.FillSSHDefaults(entry)

	keyFile := f.KeyFile
	if keyFile == "" && f.SSHPassword == "" {
		keyFile = cfg.Install.KeyFile
	}
	if keyFile != "" {
		pem, info, err := sshutil.ReadPrivateKey(keyFile)
		if err != nil {
			return p, keyError(keyFile, err)
		}
		log.Debug("using %s key %s (%s)", info.Type, keyFile, info.Fingerprint)
		p.AuthType = api.SSHAuthPrivateKey
		p.PrivateKey = pem
	} else {
		p.AuthType = api.SSHAuthPassword
		p.Password = f.SSHPassword
		if p.Password == "" {
			p.Password = secret(config.SecretSSHPassword, log)
		}
	}

	if f.PGHost != "" {
		p.PGHost = f.PGHost
	}
	if f.PGPort != 0 {
		p.PGPort = f.PGPort
	}
	if f.PGUser != "" {
		p.PGUser = f.PGUser
	}
	if f.PGDatabase != "" {
		p.PGDatabase = f.PGDatabase
	}
	p.PGPassword = f.PGPassword
	if p.PGPassword == "" {
		p.PGPassword = secret(config.SecretPGPassword, log)
	}

	if f.AgentPort != 0 {
		p.AgentPort = f.AgentPort
	}
	if f.Model != "" {
		p.Model = f.Model
	}
	if f.MaxStatements != 0 {
		p.MaxStatements = f.MaxStatements
	}
	p.OpenAIKey = f.OpenAIKey
	if p.OpenAIKey == "" {
		p.OpenAIKey = secret(config.SecretOpenAIKey, log)
	}
	return p, nil
}

func keyError(path string, err error) error {
	if enc, ok := err.(*sshutil.EncryptedKeyError); ok {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"SSH key is passphrase protected", enc.Suggestion())
	}
	return errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("Couldn't use SSH key %s", path),
		"Point --ssh-key at an OpenSSH or PEM private key")
}

// secret looks name up, treating an unreachable keyring as unset so
// validation reports the missing value instead.
func secret(name string, log logger.Logger) string {
	v, err := config.Secret(name)
	if err != nil {
		log.Debug("keyring lookup for %s failed: %v", name, err)
		return ""
	}
	return v
}

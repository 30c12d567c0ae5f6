package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/pkg/sshutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddInstallFlags(t *testing.T) {
	var f InstallFlags
	cmd := &cobra.Command{Use: "test"}
	AddInstallFlags(cmd, &f)

	for _, name := range []string{
		"ssh-user", "ssh-port", "ssh-password", "ssh-key",
		"pg-host", "pg-port", "pg-user", "pg-password", "pg-database",
		"agent-port", "model", "max-statements", "openai-key",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	require.NoError(t, cmd.Flags().Parse([]string{"--ssh-user", "deploy", "--pg-port", "6432"}))
	assert.Equal(t, "deploy", f.SSHUser)
	assert.Equal(t, 6432, f.PGPort)
}

func TestInstallFlagsParams_ConfigDefaults(t *testing.T) {
	testEnv(t)
	cfg := config.DefaultConfig()
	cfg.Install.SSHUser = "ubuntu"

	p, err := InstallFlags{SSHPassword: "pw"}.Params(cfg, sshutil.SSHHostEntry{}, logger.Noop())
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", p.SSHUser)
	assert.Equal(t, 22, p.SSHPort)
	assert.Equal(t, api.SSHAuthPassword, p.AuthType)
	assert.Equal(t, "pw", p.Password)
	assert.Equal(t, "127.0.0.1", p.PGHost)
	assert.Equal(t, 5432, p.PGPort)
	assert.Equal(t, "gpt-4o-mini", p.Model)
	assert.Equal(t, 50, p.MaxStatements)
}

func TestInstallFlagsParams_FlagsWin(t *testing.T) {
	testEnv(t)
	cfg := config.DefaultConfig()
	cfg.Install.SSHUser = "ubuntu"

	f := InstallFlags{
		SSHUser: "deploy", SSHPort: 2222, SSHPassword: "pw",
		PGHost: "db.internal", PGPort: 6432, PGUser: "monitor", PGDatabase: "app",
		AgentPort: 9000, Model: "gpt-4o", MaxStatements: 10, OpenAIKey: "sk-flag-value",
	}
	p, err := f.Params(cfg, sshutil.SSHHostEntry{User: "fromssh", Port: "2200"}, logger.Noop())
	require.NoError(t, err)

	assert.Equal(t, "deploy", p.SSHUser)
	assert.Equal(t, 2222, p.SSHPort)
	assert.Equal(t, "db.internal", p.PGHost)
	assert.Equal(t, 6432, p.PGPort)
	assert.Equal(t, "monitor", p.PGUser)
	assert.Equal(t, "app", p.PGDatabase)
	assert.Equal(t, 9000, p.AgentPort)
	assert.Equal(t, "gpt-4o", p.Model)
	assert.Equal(t, 10, p.MaxStatements)
	assert.Equal(t, "sk-flag-value", p.OpenAIKey)
}

func TestInstallFlagsParams_SSHConfigFillsGaps(t *testing.T) {
	testEnv(t)
	cfg := config.DefaultConfig()

	p, err := InstallFlags{SSHPassword: "pw"}.Params(cfg, sshutil.SSHHostEntry{User: "fromssh", Port: "2200"}, logger.Noop())
	require.NoError(t, err)
	assert.Equal(t, "fromssh", p.SSHUser)
	assert.Equal(t, 2200, p.SSHPort)
}

func TestInstallFlagsParams_SecretsFromEnvAndKeyring(t *testing.T) {
	testEnv(t)
	require.NoError(t, config.StoreSecret(config.SecretPGPassword, "pg-from-keyring"))
	t.Setenv("PGAI_SSH_PASSWORD", "ssh-from-env")
	t.Setenv("OPENAI_API_KEY", "sk-from-env-var")

	p, err := InstallFlags{}.Params(config.DefaultConfig(), sshutil.SSHHostEntry{}, logger.Noop())
	require.NoError(t, err)
	assert.Equal(t, "ssh-from-env", p.Password)
	assert.Equal(t, "pg-from-keyring", p.PGPassword)
	assert.Equal(t, "sk-from-env-var", p.OpenAIKey)
}

func TestInstallFlagsParams_MissingKeyFile(t *testing.T) {
	testEnv(t)

	_, err := InstallFlags{KeyFile: filepath.Join(t.TempDir(), "missing")}.Params(config.DefaultConfig(), sshutil.SSHHostEntry{}, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
}

func TestInstallFlagsParams_InvalidKeyFile(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "id_bad")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := InstallFlags{KeyFile: path}.Params(config.DefaultConfig(), sshutil.SSHHostEntry{}, logger.Noop())
	require.Error(t, err)
	assert.Equal(t, ErrCodeSSHKey, ErrorToJSON(err).Code)
}

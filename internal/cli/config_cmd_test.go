package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSet(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "", "config", "set", "install.ssh_user", "deploy")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Set install.ssh_user")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "deploy", cfg.Install.SSHUser)
}

func TestConfigSet_InvalidValueRollsBack(t *testing.T) {
	cfgPath := testEnv(t)
	before, err := os.ReadFile(cfgPath)
	require.NoError(t, err)

	res := runCLI(t, cfgPath, "", "config", "set", "api.url", "not-a-url")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrConfig))

	after, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestConfigSet_RejectsSecrets(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "", "config", "set", config.SecretSSHPassword, "pw")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrInput))
}

func TestConfigShow_JSON(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "http://10.0.0.2:8000", "config", "show", "--json")
	require.NoError(t, res.err)

	var data struct {
		Path   string `json:"path"`
		Config struct {
			API struct {
				URL string `json:"URL"`
			} `json:"API"`
		} `json:"config"`
	}
	decodeEnvelope(t, res.out, &data)
	assert.Equal(t, cfgPath, data.Path)
	assert.Equal(t, "http://10.0.0.2:8000", data.Config.API.URL)
}

func TestConfigShow_YAML(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "# "+cfgPath)
	assert.Contains(t, res.out, "ssh_user: ubuntu")
}

func TestConfigInit_Local(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "http://10.0.0.2:8000", "config", "init", "--local", "--non-interactive")
	require.NoError(t, res.err)

	path := filepath.Join(".", config.ConfigFileName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8000", cfg.API.URL)

	// A second run refuses to overwrite without --force.
	res = runCLI(t, cfgPath, "", "config", "init", "--local", "--non-interactive")
	require.Error(t, res.err)

	res = runCLI(t, cfgPath, "", "config", "init", "--local", "--non-interactive", "--force")
	require.NoError(t, res.err)
}

func TestConfigSecret_Lifecycle(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "", "config", "secret", "set", config.SecretPGPassword, "--value", "s3cret")
	require.NoError(t, res.err)

	v, err := config.Secret(config.SecretPGPassword)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	res = runCLI(t, cfgPath, "", "config", "secret", "list", "--json")
	require.NoError(t, res.err)
	var set map[string]bool
	decodeEnvelope(t, res.out, &set)
	assert.True(t, set[config.SecretPGPassword])
	assert.False(t, set[config.SecretSSHPassword])

	res = runCLI(t, cfgPath, "", "config", "secret", "delete", config.SecretPGPassword)
	require.NoError(t, res.err)
	v, err = config.Secret(config.SecretPGPassword)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestConfigSecret_UnknownName(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "", "config", "secret", "set", "aws_key", "--value", "x")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrInput))
}

func TestConfigSecret_NoValueWithoutTerminal(t *testing.T) {
	cfgPath := testEnv(t)

	res := runCLI(t, cfgPath, "", "config", "secret", "set", config.SecretSSHPassword)
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrInput))
}

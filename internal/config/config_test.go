package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "http://localhost:8000", cfg.API.URL)
	assert.Equal(t, 5*time.Minute, cfg.API.Timeout)
	assert.Equal(t, 2, cfg.API.Retries)
	assert.Equal(t, 22, cfg.Install.SSHPort)
	assert.Equal(t, "127.0.0.1", cfg.Install.PGHost)
	assert.Equal(t, 5432, cfg.Install.PGPort)
	assert.Equal(t, "postgres", cfg.Install.PGUser)
	assert.Equal(t, "postgres", cfg.Install.PGDatabase)
	assert.Equal(t, 8010, cfg.Install.AgentPort)
	assert.Equal(t, "gpt-4o-mini", cfg.Install.Model)
	assert.Equal(t, 50, cfg.Install.MaxStatements)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
api:
  url: https://pgai.internal:8443/
  timeout: 90s
  retries: 4
install:
  ssh_user: deploy
  agent_port: 9010
console:
  auto_probe: true
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://pgai.internal:8443", cfg.API.URL, "trailing slash trimmed")
	assert.Equal(t, 90*time.Second, cfg.API.Timeout)
	assert.Equal(t, 4, cfg.API.Retries)
	assert.Equal(t, 10.0, cfg.API.RateLimit, "unset keys keep defaults")
	assert.Equal(t, "deploy", cfg.Install.SSHUser)
	assert.Equal(t, 9010, cfg.Install.AgentPort)
	assert.Equal(t, "gpt-4o-mini", cfg.Install.Model)
	assert.True(t, cfg.Console.AutoProbe)
	assert.Equal(t, 5*time.Second, cfg.Console.NoticeTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("api:\n  url: http://file:8000\n"), 0644))

	t.Setenv("PGAI_API_URL", "http://env:9000")
	t.Setenv("PGAI_INSTALL_MODEL", "gpt-4o")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "http://env:9000", cfg.API.URL)
	assert.Equal(t, "gpt-4o", cfg.Install.Model)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("api: [unterminated"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0644))

		found, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("current directory then parent", func(t *testing.T) {
		root := t.TempDir()
		t.Setenv("HOME", t.TempDir())
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("version: 1\n"), 0644))
		sub := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(sub, 0755))
		t.Chdir(sub)

		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, resolve(t, filepath.Join(root, ConfigFileName)), resolve(t, found))
	})

	t.Run("global fallback", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		require.NoError(t, os.MkdirAll(filepath.Dir(global), 0755))
		require.NoError(t, os.WriteFile(global, []byte("version: 1\n"), 0644))

		work := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(work, ".git"), 0755))
		t.Chdir(work)

		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, global, found)
	})
}

// resolve evaluates symlinks so temp dirs compare equal on macOS.
func resolve(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return p
}

func TestLoadOrDefault_DotEnvAndNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	work := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(work, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(work, DotEnvFile), []byte("PGAI_API_RETRIES=7\n"), 0644))
	t.Chdir(work)
	t.Setenv("PGAI_API_RETRIES", "")
	os.Unsetenv("PGAI_API_RETRIES")

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 7, cfg.API.Retries)
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"future version", func(c *Config) { c.Version = 99 }, "from the future"},
		{"empty url", func(c *Config) { c.API.URL = "" }, "api.url is empty"},
		{"bad scheme", func(c *Config) { c.API.URL = "ftp://x" }, "http:// or https://"},
		{"no host", func(c *Config) { c.API.URL = "http://" }, "has no host"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"zero retries", func(c *Config) { c.API.Retries = 0 }, "api.retries"},
		{"negative rate", func(c *Config) { c.API.RateLimit = -1 }, "api.rate_limit"},
		{"zero burst", func(c *Config) { c.API.Burst = 0 }, "api.burst"},
		{"bad agent port", func(c *Config) { c.Install.AgentPort = 70000 }, "install.agent_port"},
		{"bad ssh port", func(c *Config) { c.Install.SSHPort = 0 }, "install.ssh_port"},
		{"max statements", func(c *Config) { c.Install.MaxStatements = 0 }, "install.max_statements"},
		{"color", func(c *Config) { c.Output.Color = "rainbow" }, "output.color"},
		{"verbosity", func(c *Config) { c.Output.Verbosity = "loud" }, "output.verbosity"},
		{"notice ttl", func(c *Config) { c.Console.NoticeTTL = -time.Second }, "notice_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestValidate_RateLimitDisabledIgnoresBurst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.RateLimit = 0
	cfg.API.Burst = 0
	assert.NoError(t, Validate(cfg))
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.API.URL = "http://svc:8000"
	cfg.API.Timeout = 2 * time.Minute

	require.NoError(t, Write(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 2m0s")
	assert.Contains(t, string(data), "# pgai configuration")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# my settings
api:
  url: http://old:8000 # primary
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	require.NoError(t, SetValue(path, "api.url", "http://new:8000"))
	require.NoError(t, SetValue(path, "install.agent_port", "9010"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# my settings")
	assert.Contains(t, string(data), "http://new:8000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://new:8000", cfg.API.URL)
	assert.Equal(t, 9010, cfg.Install.AgentPort)
}

func TestSetValue_NotASection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: plain\n"), 0644))

	err := SetValue(path, "api.url", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a section")
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, ".ssh", "id"), ExpandTilde("~/.ssh/id"))
	assert.Equal(t, "/abs", ExpandTilde("/abs"))
	assert.Equal(t, "", ExpandTilde(""))
}

func TestSecret(t *testing.T) {
	keyring.MockInit()

	t.Run("not set", func(t *testing.T) {
		v, err := Secret(SecretSSHPassword)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("keyring", func(t *testing.T) {
		require.NoError(t, StoreSecret(SecretOpenAIKey, "sk-from-keyring"))
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("PGAI_OPENAI_API_KEY", "")

		v, err := Secret(SecretOpenAIKey)
		require.NoError(t, err)
		assert.Equal(t, "sk-from-keyring", v)

		require.NoError(t, DeleteSecret(SecretOpenAIKey))
		require.NoError(t, DeleteSecret(SecretOpenAIKey), "deleting twice is fine")
		v, err = Secret(SecretOpenAIKey)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("env wins over keyring", func(t *testing.T) {
		require.NoError(t, StoreSecret(SecretOpenAIKey, "sk-from-keyring"))
		t.Setenv("OPENAI_API_KEY", "sk-well-known")
		v, err := Secret(SecretOpenAIKey)
		require.NoError(t, err)
		assert.Equal(t, "sk-well-known", v)

		t.Setenv("PGAI_OPENAI_API_KEY", "sk-prefixed")
		v, err = Secret(SecretOpenAIKey)
		require.NoError(t, err)
		assert.Equal(t, "sk-prefixed", v)
	})
}

func TestIsSecretName(t *testing.T) {
	assert.True(t, IsSecretName(SecretPGPassword))
	assert.False(t, IsSecretName("api.url"))
}

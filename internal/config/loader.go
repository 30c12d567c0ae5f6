package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the project-local config file name.
	ConfigFileName = ".pgai.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/pgai"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PGAI_API_URL.
	EnvPrefix = "PGAI"
	// DotEnvFile is loaded from the working directory when present.
	DotEnvFile = ".env"
)

// Load reads config from the specified path. Environment overrides apply on
// top of the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'pgai config init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .pgai.yaml in current directory
// 3. .pgai.yaml in parent directories (stops at git root or home)
// 4. ~/.config/pgai/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && parent == home {
			// Don't go above home directory
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		if isGitRoot(dir) {
			break
		}
	}

	if global := GlobalConfigPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// GlobalConfigPath returns ~/.config/pgai/config.yaml, or "" without a home.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault loads .env, then the config found from explicit, falling
// back to defaults plus environment overrides when no file exists. The
// returned path is "" in the fallback case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	if err := LoadDotEnv(DotEnvFile); err != nil {
		return nil, "", err
	}

	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// LoadDotEnv loads KEY=VALUE pairs from file into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(file string) error {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read "+file,
			"Check the file uses KEY=VALUE lines")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	cfg.API.URL = strings.TrimRight(cfg.API.URL, "/")
	cfg.Install.KeyFile = ExpandTilde(cfg.Install.KeyFile)
	return cfg, nil
}

// setDefaults registers every key so environment overrides resolve even when
// the file omits them.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.timeout", d.API.Timeout.String())
	v.SetDefault("api.retries", d.API.Retries)
	v.SetDefault("api.rate_limit", d.API.RateLimit)
	v.SetDefault("api.burst", d.API.Burst)
	v.SetDefault("install.ssh_user", d.Install.SSHUser)
	v.SetDefault("install.ssh_port", d.Install.SSHPort)
	v.SetDefault("install.key_file", d.Install.KeyFile)
	v.SetDefault("install.pg_host", d.Install.PGHost)
	v.SetDefault("install.pg_port", d.Install.PGPort)
	v.SetDefault("install.pg_user", d.Install.PGUser)
	v.SetDefault("install.pg_database", d.Install.PGDatabase)
	v.SetDefault("install.agent_port", d.Install.AgentPort)
	v.SetDefault("install.model", d.Install.Model)
	v.SetDefault("install.max_statements", d.Install.MaxStatements)
	v.SetDefault("console.auto_probe", d.Console.AutoProbe)
	v.SetDefault("console.notice_ttl", d.Console.NoticeTTL.String())
	v.SetDefault("output.color", d.Output.Color)
	v.SetDefault("output.verbosity", d.Output.Verbosity)
}

// ExpandTilde replaces ~ or ~/path with the user's home directory.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}

package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete pgai configuration file.
type Config struct {
	Version int           `yaml:"version" mapstructure:"version"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Install InstallConfig `yaml:"install" mapstructure:"install"`
	Console ConsoleConfig `yaml:"console" mapstructure:"console"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
}

// APIConfig points the console at the monitoring service.
type APIConfig struct {
	// URL is the service base URL, e.g. http://localhost:8000.
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout bounds a single request. Collections can take minutes.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Retries is the number of attempts for idempotent reads.
	Retries int `yaml:"retries" mapstructure:"retries"`

	// RateLimit caps requests per second. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Burst is the limiter bucket size.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// InstallConfig holds the defaults pre-filled in the agent install form.
// Secrets are never stored here; see Secret.
type InstallConfig struct {
	SSHUser       string `yaml:"ssh_user" mapstructure:"ssh_user"`
	SSHPort       int    `yaml:"ssh_port" mapstructure:"ssh_port"`
	KeyFile       string `yaml:"key_file" mapstructure:"key_file"`
	PGHost        string `yaml:"pg_host" mapstructure:"pg_host"`
	PGPort        int    `yaml:"pg_port" mapstructure:"pg_port"`
	PGUser        string `yaml:"pg_user" mapstructure:"pg_user"`
	PGDatabase    string `yaml:"pg_database" mapstructure:"pg_database"`
	AgentPort     int    `yaml:"agent_port" mapstructure:"agent_port"`
	Model         string `yaml:"model" mapstructure:"model"`
	MaxStatements int    `yaml:"max_statements" mapstructure:"max_statements"`
}

// ConsoleConfig tunes the interactive console.
type ConsoleConfig struct {
	// AutoProbe probes every server's databases right after the list loads.
	AutoProbe bool `yaml:"auto_probe" mapstructure:"auto_probe"`

	// NoticeTTL is how long a transient notice stays in the footer.
	NoticeTTL time.Duration `yaml:"notice_ttl" mapstructure:"notice_ttl"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`

	// Verbosity level: "quiet", "normal", or "verbose".
	Verbosity string `yaml:"verbosity" mapstructure:"verbosity"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		API: APIConfig{
			URL:       "http://localhost:8000",
			Timeout:   5 * time.Minute,
			Retries:   2,
			RateLimit: 10,
			Burst:     5,
		},
		Install: InstallConfig{
			SSHPort:       22,
			PGHost:        "127.0.0.1",
			PGPort:        5432,
			PGUser:        "postgres",
			PGDatabase:    "postgres",
			AgentPort:     8010,
			Model:         "gpt-4o-mini",
			MaxStatements: 50,
		},
		Console: ConsoleConfig{
			AutoProbe: false,
			NoticeTTL: 5 * time.Second,
		},
		Output: OutputConfig{
			Color:     "auto",
			Verbosity: "normal",
		},
	}
}

package config

import (
	"fmt"
	"net/url"

	"github.com/rileyhilliard/pgai/internal/errors"
)

var validColors = map[string]bool{"auto": true, "always": true, "never": true}

var validVerbosity = map[string]bool{"quiet": true, "normal": true, "verbose": true}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but pgai only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade pgai to a newer release")
	}

	if err := validateAPI(cfg.API); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'api' section of your config, or PGAI_API_* variables.")
	}

	if err := validateInstall(cfg.Install); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'install' section of your config.")
	}

	if err := validateOutput(cfg.Output); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'output' section of your config.")
	}

	if cfg.Console.NoticeTTL < 0 {
		return errors.New(errors.ErrConfig,
			"console.notice_ttl can't be negative",
			"Use a duration like 5s")
	}

	return nil
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("api.url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("api.url %q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.url %q must start with http:// or https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("api.url %q has no host", raw)
	}
	return nil
}

func validateAPI(api APIConfig) error {
	if err := ValidateURL(api.URL); err != nil {
		return err
	}
	if api.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", api.Timeout)
	}
	if api.Retries < 1 {
		return fmt.Errorf("api.retries must be at least 1, got %d", api.Retries)
	}
	if api.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit can't be negative, got %v", api.RateLimit)
	}
	if api.RateLimit > 0 && api.Burst < 1 {
		return fmt.Errorf("api.burst must be at least 1 when rate limiting, got %d", api.Burst)
	}
	return nil
}

func validateInstall(in InstallConfig) error {
	ports := []struct {
		name  string
		value int
	}{
		{"install.ssh_port", in.SSHPort},
		{"install.pg_port", in.PGPort},
		{"install.agent_port", in.AgentPort},
	}
	for _, p := range ports {
		if err := ValidatePort(p.value); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	if in.MaxStatements < 1 {
		return fmt.Errorf("install.max_statements must be at least 1, got %d", in.MaxStatements)
	}
	return nil
}

// ValidatePort checks a TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d is out of range (1-65535)", port)
	}
	return nil
}

func validateOutput(out OutputConfig) error {
	if out.Color != "" && !validColors[out.Color] {
		return fmt.Errorf("output.color must be auto, always or never, got %q", out.Color)
	}
	if out.Verbosity != "" && !validVerbosity[out.Verbosity] {
		return fmt.Errorf("output.verbosity must be quiet, normal or verbose, got %q", out.Verbosity)
	}
	return nil
}

package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/zalando/go-keyring"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "pgai"

// Secret names.
const (
	SecretOpenAIKey   = "openai_api_key"
	SecretSSHPassword = "ssh_password"
	SecretPGPassword  = "pg_password"
)

// fallbackEnv lists well-known variables checked after PGAI_<NAME>.
var fallbackEnv = map[string]string{
	SecretOpenAIKey: "OPENAI_API_KEY",
}

// Secret resolves a secret from PGAI_<NAME>, then its well-known variable,
// then the OS keyring. It returns "" with no error when nothing is set.
func Secret(name string) (string, error) {
	if v := os.Getenv(EnvPrefix + "_" + strings.ToUpper(name)); v != "" {
		return v, nil
	}
	if env, ok := fallbackEnv[name]; ok {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	v, err := keyring.Get(KeyringService, name)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read "+name+" from the OS keyring",
			"Set "+EnvPrefix+"_"+strings.ToUpper(name)+" instead")
	}
	return v, nil
}

// StoreSecret saves a secret in the OS keyring.
func StoreSecret(name, value string) error {
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't store "+name+" in the OS keyring",
			"Pass the value with a flag or environment variable instead")
	}
	return nil
}

// DeleteSecret removes a secret from the OS keyring. Missing secrets are fine.
func DeleteSecret(name string) error {
	err := keyring.Delete(KeyringService, name)
	if err != nil && !stderrors.Is(err, keyring.ErrNotFound) {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't delete "+name+" from the OS keyring", "")
	}
	return nil
}

// IsSecretName reports whether name is a known secret.
func IsSecretName(name string) bool {
	switch name {
	case SecretOpenAIKey, SecretSSHPassword, SecretPGPassword:
		return true
	}
	return false
}

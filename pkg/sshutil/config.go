// Package sshutil reads ~/.ssh/config and checks private keys so onboarding
// can pre-fill and validate the SSH credentials it hands to the service.
package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// DefaultPort is used when neither the operator nor ssh_config names a port.
const DefaultPort = 22

// SSHHostEntry represents a parsed host entry from SSH config.
type SSHHostEntry struct {
	Alias        string // The Host pattern (alias)
	Hostname     string // The HostName value (actual host to connect to)
	User         string
	Port         string
	IdentityFile string
}

// Description returns a user-friendly description of the host.
func (h SSHHostEntry) Description() string {
	parts := []string{}

	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}

	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// Address returns the host to register: HostName when set, else the alias.
func (h SSHHostEntry) Address() string {
	if h.Hostname != "" {
		return h.Hostname
	}
	return h.Alias
}

// PortNumber returns Port as an int, or DefaultPort when unset or invalid.
func (h SSHHostEntry) PortNumber() int {
	p, err := strconv.Atoi(h.Port)
	if err != nil || p < 1 || p > 65535 {
		return DefaultPort
	}
	return p
}

// ConfigPath returns the location of the user's ssh_config.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// ParseSSHConfig parses ~/.ssh/config and returns all host entries.
func ParseSSHConfig() ([]SSHHostEntry, error) {
	return ParseSSHConfigFile(ConfigPath())
}

// ParseSSHConfigFile parses the specified SSH config file, returning only
// concrete host aliases. Wildcard patterns are skipped. A missing file is not
// an error.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	cfg, err := decode(configPath)
	if err != nil || cfg == nil {
		return nil, err
	}

	var hosts []SSHHostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()

			if strings.Contains(alias, "*") || strings.Contains(alias, "?") || strings.HasPrefix(alias, "!") {
				continue
			}
			if seen[alias] {
				continue
			}
			seen[alias] = true

			hosts = append(hosts, entryFor(cfg, alias))
		}
	}

	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})

	return hosts, nil
}

// Lookup resolves the settings ~/.ssh/config applies to host, including
// wildcard blocks. Fields the config does not set are left empty.
func Lookup(host string) SSHHostEntry {
	return LookupFile(ConfigPath(), host)
}

// LookupFile is Lookup against a specific config file.
func LookupFile(configPath, host string) SSHHostEntry {
	cfg, err := decode(configPath)
	if err != nil || cfg == nil {
		return SSHHostEntry{Alias: host}
	}
	return entryFor(cfg, host)
}

func entryFor(cfg *ssh_config.Config, alias string) SSHHostEntry {
	entry := SSHHostEntry{Alias: alias}
	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		entry.Hostname = hostname
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		entry.User = user
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		entry.Port = port
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		entry.IdentityFile = expandPath(identity)
	}
	return entry
}

func decode(configPath string) (*ssh_config.Config, error) {
	content, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ssh_config.Decode(bytes.NewReader(content))
}

// preprocessSSHConfig returns the config content up to the first Match
// directive, which ssh_config cannot decode.
func preprocessSSHConfig(configPath string) ([]byte, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			break
		}
		result = append(result, line)
	}
	return []byte(strings.Join(result, "\n")), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// CurrentUser returns the local login name, used when nothing else names an
// SSH user.
func CurrentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// ExpandPath expands a leading ~/ to the home directory.
func ExpandPath(path string) string { return expandPath(path) }

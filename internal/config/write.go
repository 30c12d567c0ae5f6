package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileHeader = "# pgai configuration. Secrets live in the OS keyring, not here.\n"

// Write saves cfg to path, creating parent directories.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SetValue sets a dotted key such as "api.url" in an existing config file.
// It preserves the existing YAML structure and comments, creating missing
// sections. The result must still load and validate.
func SetValue(configPath, key, value string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	node := root.Content[0]
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child := findMapValue(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, scalar(part), child)
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("'%s' is not a section", part)
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	if existing := findMapValue(node, leaf); existing != nil {
		existing.Kind = yaml.ScalarNode
		existing.Tag = ""
		existing.Value = value
		existing.Content = nil
	} else {
		v := scalar(value)
		v.Tag = ""
		node.Content = append(node.Content, scalar(leaf), v)
	}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// MarshalYAML writes durations as strings like "5m0s".
func (a APIConfig) MarshalYAML() (interface{}, error) {
	return struct {
		URL       string  `yaml:"url"`
		Timeout   string  `yaml:"timeout"`
		Retries   int     `yaml:"retries"`
		RateLimit float64 `yaml:"rate_limit"`
		Burst     int     `yaml:"burst"`
	}{a.URL, a.Timeout.String(), a.Retries, a.RateLimit, a.Burst}, nil
}

// MarshalYAML writes durations as strings like "5s".
func (c ConsoleConfig) MarshalYAML() (interface{}, error) {
	return struct {
		AutoProbe bool   `yaml:"auto_probe"`
		NoticeTTL string `yaml:"notice_ttl"`
	}{c.AutoProbe, c.NoticeTTL.String()}, nil
}

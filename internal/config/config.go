// Package config provides configuration for the pagelens bridge and relay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	kdl "github.com/sblinch/kdl-go"
)

// ConfigFileName is the name of the pagelens configuration file.
const ConfigFileName = ".pagelens.kdl"

// Config represents the pagelens configuration.
type Config struct {
	// Bridge daemon settings
	Bridge *BridgeConfig `kdl:"bridge"`

	// Relay settings
	Relay *RelayConfig `kdl:"relay"`
}

// BridgeConfig configures the extension-facing daemon.
type BridgeConfig struct {
	Listen   string `kdl:"listen"`
	RelayURL string `kdl:"relay-url"`
}

// RelayConfig configures the backend proxy.
type RelayConfig struct {
	Listen    string `kdl:"listen"`
	Provider  string `kdl:"provider"` // gemini or anthropic
	Model     string `kdl:"model"`
	MaxTokens int    `kdl:"max-tokens"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bridge: &BridgeConfig{
			Listen:   "127.0.0.1:8474",
			RelayURL: "http://127.0.0.1:8475",
		},
		Relay: &RelayConfig{
			Listen:    "127.0.0.1:8475",
			Provider:  "gemini",
			Model:     "gemini-1.5-flash",
			MaxTokens: 1024,
		},
	}
}

// Load loads configuration from the specified directory, walking up until a
// config file is found. Missing file means defaults. Environment variables
// override the file either way.
func Load(dir string) (*Config, error) {
	configPath := FindConfigFile(dir)
	if configPath == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// FindConfigFile searches for .pagelens.kdl starting from dir and walking up.
func FindConfigFile(dir string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(absDir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			break
		}
		absDir = parent
	}

	return ""
}

// LoadFile loads configuration from a specific file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(string(data))
}

// Parse parses KDL configuration data over the defaults.
func Parse(data string) (*Config, error) {
	cfg := DefaultConfig()

	if err := kdl.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// A file that names a section but omits a knob keeps the default.
	defaults := DefaultConfig()
	if cfg.Bridge == nil {
		cfg.Bridge = defaults.Bridge
	} else {
		if cfg.Bridge.Listen == "" {
			cfg.Bridge.Listen = defaults.Bridge.Listen
		}
		if cfg.Bridge.RelayURL == "" {
			cfg.Bridge.RelayURL = defaults.Bridge.RelayURL
		}
	}
	if cfg.Relay == nil {
		cfg.Relay = defaults.Relay
	} else {
		if cfg.Relay.Listen == "" {
			cfg.Relay.Listen = defaults.Relay.Listen
		}
		if cfg.Relay.Provider == "" {
			cfg.Relay.Provider = defaults.Relay.Provider
		}
		if cfg.Relay.Model == "" {
			cfg.Relay.Model = defaults.Relay.Model
		}
		if cfg.Relay.MaxTokens == 0 {
			cfg.Relay.MaxTokens = defaults.Relay.MaxTokens
		}
	}

	return cfg, nil
}

// applyEnv overlays environment variables on the loaded config.
func (c *Config) applyEnv() {
	if v := os.Getenv("PAGELENS_BRIDGE_LISTEN"); v != "" {
		c.Bridge.Listen = v
	}
	if v := os.Getenv("PAGELENS_RELAY_URL"); v != "" {
		c.Bridge.RelayURL = v
	}
	if v := os.Getenv("PAGELENS_RELAY_LISTEN"); v != "" {
		c.Relay.Listen = v
	}
	if v := os.Getenv("PAGELENS_PROVIDER"); v != "" {
		c.Relay.Provider = v
	}
	if v := os.Getenv("PAGELENS_MODEL"); v != "" {
		c.Relay.Model = v
	}
	if v := os.Getenv("PAGELENS_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Relay.MaxTokens = n
		}
	}
}

// GeminiAPIKey returns the Gemini credential from the environment.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// AnthropicAPIKey returns the Anthropic credential from the environment.
func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// WriteDefaultConfig writes a default configuration file with documentation.
func WriteDefaultConfig(path string) error {
	defaultKDL := `// Pagelens Configuration

// Extension-facing bridge daemon
bridge {
    listen "127.0.0.1:8474"
    relay-url "http://127.0.0.1:8475"
}

// Backend relay to the generative-language API
relay {
    listen "127.0.0.1:8475"
    provider "gemini"        // gemini or anthropic
    model "gemini-1.5-flash"
    max-tokens 1024
}
`
	return os.WriteFile(path, []byte(defaultKDL), 0644)
}

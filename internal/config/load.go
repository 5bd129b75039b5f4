package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirName  = ".codewright"
	fileName = "config.json"
)

// Dir returns the Codewright data directory (~/.codewright).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads and validates a configuration file. Defaults are applied to
// zero-valued numeric settings after unmarshal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply defaults
	if cfg.Settings.MaxTokens == 0 {
		cfg.Settings.MaxTokens = 4096
	}
	if cfg.Settings.Temperature == 0 {
		cfg.Settings.Temperature = 0.7
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrCreate loads the configuration at path, writing the default
// configuration first if no file exists yet.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return nil, err
		}
	}
	return Load(path)
}

// Save writes the configuration as indented JSON. The file may hold API
// keys, so it is created user-readable only.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the structural requirements the rest of the system
// assumes: a known dialect, a base URL, and a model for every provider, and
// a default_provider that exists.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: no providers defined")
	}
	if c.DefaultProvider == "" {
		return fmt.Errorf("config: default_provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("config: default_provider %q not found in providers", c.DefaultProvider)
	}

	for name, p := range c.Providers {
		switch p.Dialect {
		case DialectOpenAI, DialectAnthropic:
		default:
			return fmt.Errorf("config: provider %q has unknown dialect %q", name, p.Dialect)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("config: provider %q has no base_url", name)
		}
		if p.Model == "" {
			return fmt.Errorf("config: provider %q has no model", name)
		}
	}
	return nil
}

// ResolveKey returns the API key for a provider: the inline key when set,
// otherwise the KeyEnv environment variable. Empty is a valid result for
// providers that need no authentication.
func ResolveKey(p Provider) string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.KeyEnv != "" {
		return os.Getenv(p.KeyEnv)
	}
	return ""
}

// Package config provides configuration management for the stoat CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file the CLI looks for in the working
// directory.
const DefaultFileName = "stoat.yaml"

// Supported storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config represents the stoat CLI configuration.
type Config struct {
	// Version of the config file format.
	Version string `yaml:"version"`

	// Storage selects and configures the backend.
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig contains storage backend settings.
type StorageConfig struct {
	// Backend is one of memory, sqlite, postgres.
	Backend string `yaml:"backend"`

	// DSN is the connection string: a file path for sqlite, a postgres
	// URL for postgres. Unused by the memory backend.
	DSN string `yaml:"dsn,omitempty"`

	// Schema is the postgres schema name.
	Schema string `yaml:"schema,omitempty"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DSN:     "stoat.db",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite, BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: %s backend requires storage.dsn", c.Storage.Backend)
		}
		return nil
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
}

// Load reads a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads the config at path, falling back to defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Save writes the config to a file, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}

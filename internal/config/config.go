// Package config manages the pipeline configuration and storage-root layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const DatabaseFile = "codeintel.db"

// Config represents the worker configuration
type Config struct {
	// StorageRoot holds upload payloads, conversion temp files, and
	// published artifact databases.
	StorageRoot string `toml:"storage_root"`

	// Database is the metadata database path. Defaults to
	// <storage_root>/codeintel.db.
	Database string `toml:"database,omitempty"`

	// MaxStorageBytes caps the total size of the artifact directory.
	// Negative means unlimited.
	MaxStorageBytes int64 `toml:"max_storage_bytes"`

	// GitserverEndpoints are the version-control endpoints used for tip
	// resolution and commit discovery.
	GitserverEndpoints []string `toml:"gitserver_endpoints"`

	// ConverterCommand is the external bundle conversion command line.
	ConverterCommand []string `toml:"converter_command"`

	// PoolSize is the number of uploads processed concurrently.
	PoolSize int `toml:"pool_size"`

	// PollSeconds is the queue poll fallback interval.
	PollSeconds int `toml:"poll_seconds"`
}

// Default returns a configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		StorageRoot:     "/var/lib/codeintel",
		MaxStorageBytes: -1,
		PoolSize:        4,
		PollSeconds:     10,
	}
}

// Load reads the configuration from a TOML file and applies defaults for
// unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a TOML file.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.StorageRoot == "" {
		return fmt.Errorf("storage_root is required")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1")
	}
	if c.PollSeconds < 1 {
		return fmt.Errorf("poll_seconds must be at least 1")
	}
	return nil
}

// DatabasePath returns the metadata database location.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.StorageRoot, DatabaseFile)
}

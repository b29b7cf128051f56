// Package config loads engine configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all proxytree configuration.
type Config struct {
	// Tree settings
	Tree TreeConfig `yaml:"tree"`
	// Store settings
	Store StoreConfig `yaml:"store"`
	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TreeConfig configures the reconciliation engine.
type TreeConfig struct {
	// MaxExtensionDepth bounds extension-on-extension nesting.
	MaxExtensionDepth int `yaml:"max_extension_depth"`
}

// StoreConfig selects and configures the metadata store.
type StoreConfig struct {
	Driver  string `yaml:"driver"` // memory, file, sqlite
	Path    string `yaml:"path"`
	History int    `yaml:"history"` // sqlite snapshot history
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tree:  TreeConfig{MaxExtensionDepth: 10},
		Store: StoreConfig{Driver: "memory", History: 5},
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Tree.MaxExtensionDepth < 1 {
		return fmt.Errorf("tree.max_extension_depth must be >= 1, got %d", c.Tree.MaxExtensionDepth)
	}
	switch c.Store.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.History < 0 {
		return fmt.Errorf("store.history must be >= 0, got %d", c.Store.History)
	}
	return nil
}

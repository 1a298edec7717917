// Package config handles application configuration for the demo CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the demo CLI's non-core settings: the PRODID identity used when
// the codec must mint one, and the knobs that tune the provider and its
// HTTP transport without being part of the sync engine's own contract.
//
// Grounded on the teacher's internal/config.Config: one flat struct,
// YAML-tagged, loaded by Load with create-on-first-run semantics.
type Config struct {
	// Organisation and Product feed ical.NewCodec's "-//ORG//PRODUCT//EN"
	// PRODID, used whenever the codec serialises an item with no PRODID
	// of its own yet.
	Organisation string `yaml:"organisation"`
	Product      string `yaml:"product"`

	// BatchSize is passed to provider.WithBatchSize: how many items the
	// engine fetches per calendar-multiget REPORT. Pushes are one PUT per
	// item.
	BatchSize int `yaml:"batch_size"`

	// PollInterval is how often the demo CLI's sync loop re-runs
	// Provider.Sync. Stored as a YAML duration string (e.g. "5m") and
	// parsed by PollIntervalDuration().
	PollInterval string `yaml:"poll_interval"`

	// HTTPTimeout bounds every individual CalDAV request the demo CLI's
	// transport issues, stored the same way as PollInterval.
	HTTPTimeout string `yaml:"http_timeout"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Organisation: "caldavsync",
		Product:      "caldavsync-demo",
		BatchSize:    30,
		PollInterval: "5m",
		HTTPTimeout:  "30s",
	}
}

// Load loads configuration from the specified path, or the default XDG path
// if empty. If the config file doesn't exist, it creates one with defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	def := DefaultConfig()
	if cfg.Organisation == "" {
		cfg.Organisation = def.Organisation
	}
	if cfg.Product == "" {
		cfg.Product = def.Product
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PollInterval == "" {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.HTTPTimeout == "" {
		cfg.HTTPTimeout = def.HTTPTimeout
	}

	return cfg, nil
}

// save writes the configuration to the specified path.
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	content := "# caldavsync-demo configuration\n" + string(data)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration's durations parse and its batch
// size is usable.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d (must be positive)", c.BatchSize)
	}
	if _, err := c.PollIntervalDuration(); err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}
	if _, err := c.HTTPTimeoutDuration(); err != nil {
		return fmt.Errorf("invalid http_timeout: %w", err)
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration.
func (c *Config) ApplyFlags(batchSize int, pollInterval, httpTimeout string) {
	if batchSize > 0 {
		c.BatchSize = batchSize
	}
	if pollInterval != "" {
		c.PollInterval = pollInterval
	}
	if httpTimeout != "" {
		c.HTTPTimeout = httpTimeout
	}
}

// PollIntervalDuration parses PollInterval, defaulting to 5 minutes if unset.
func (c *Config) PollIntervalDuration() (time.Duration, error) {
	if c.PollInterval == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(c.PollInterval)
}

// HTTPTimeoutDuration parses HTTPTimeout, defaulting to 30 seconds if unset.
func (c *Config) HTTPTimeoutDuration() (time.Duration, error) {
	if c.HTTPTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.HTTPTimeout)
}

// ProdID returns the "-//ORG//PRODUCT//EN" identity this config feeds to
// ical.NewCodec.
func (c *Config) ProdID() string {
	return fmt.Sprintf("-//%s//%s//EN", c.Organisation, c.Product)
}

// getXDGDir returns a directory path following XDG spec. envVar is the XDG
// environment variable (e.g., "XDG_CONFIG_HOME"). fallbackPath is the
// relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "caldavsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "caldavsync")
	}
	return filepath.Join(home, fallbackPath, "caldavsync")
}

// GetConfigDir returns the configuration directory following XDG spec.
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec.
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec.
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	path = os.ExpandEnv(path)

	return path
}

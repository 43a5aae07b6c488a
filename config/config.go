// Package config holds the daemon's YAML configuration. All settings
// load into an explicit struct passed to constructors; there is no
// process-wide mutable configuration state.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskfolk/agendo/recurrence"
)

// UserConfig is one account allowed to authenticate. The username is
// also the owner id scoping tasks and overrides.
type UserConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StorageConfig selects and parametrizes the storage backend.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the SQLite database file; unused by the memory driver.
	Path string `yaml:"path" json:"path"`
}

// CacheConfig tunes the recurrence expansion cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	TTLMinutes int  `yaml:"ttl_minutes" json:"ttl_minutes"`
	MaxEntries int  `yaml:"max_entries" json:"max_entries"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Realm is the HTTP Basic auth realm presented to clients.
	Realm string `yaml:"realm" json:"realm"`

	// ReconcileCron is a cron-style schedule (e.g. "@hourly") for the
	// redundant-override reconciliation sweep. Empty disables it.
	ReconcileCron string `yaml:"reconcile" json:"reconcile"`

	Storage StorageConfig `yaml:"storage" json:"storage"`

	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Users lists the accounts allowed to authenticate.
	Users []UserConfig `yaml:"users" json:"users"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Realm:         "agendo",
		ReconcileCron: "@hourly",
		Storage: StorageConfig{
			Driver: "memory",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLMinutes: 15,
			MaxEntries: 1000,
		},
		Users: []UserConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Realm == "" {
		c.Realm = "agendo"
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
		// ok
	case "":
		c.Storage.Driver = "memory"
	default:
		// Unknown driver; fall back to memory rather than failing late.
		c.Storage.Driver = "memory"
	}
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = 15
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Users == nil {
		c.Users = []UserConfig{}
	}
}

// ExpanderOptions converts the cache settings into recurrence options.
func (c *Config) ExpanderOptions() recurrence.Options {
	opts := recurrence.DefaultOptions
	opts.CacheEnabled = c.Cache.Enabled
	opts.CacheConfig = recurrence.CacheConfig{
		TTL:             time.Duration(c.Cache.TTLMinutes) * time.Minute,
		MaxEntries:      c.Cache.MaxEntries,
		CleanupInterval: recurrence.DefaultCacheConfig.CleanupInterval,
	}
	return opts
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there with
// 0600 perms and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path, atomically
// via a temp file + rename, with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".agendo-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "memory", cfg.Storage.Driver)

	// The default was written to disk with restrictive perms.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Loading again reads the same file back.
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, again.Listen)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_PartialConfigNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen: ":9090"
storage:
  driver: sqlite
  path: /tmp/agendo.db
users:
  - username: alice
    password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/agendo.db", cfg.Storage.Path)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "alice", cfg.Users[0].Username)

	// Unset fields pick up defaults.
	assert.Equal(t, "agendo", cfg.Realm)
	assert.Equal(t, 15, cfg.Cache.TTLMinutes)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
}

func TestNormalize_UnknownDriverFallsBack(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Driver: "postgres"}}
	cfg.Normalize()
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = ":7070"
	cfg.ReconcileCron = "@daily"
	cfg.Cache.Enabled = false
	cfg.Users = []UserConfig{{Username: "alice", Password: "secret"}}

	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, got.Listen)
	assert.Equal(t, cfg.ReconcileCron, got.ReconcileCron)
	assert.Equal(t, cfg.Cache.Enabled, got.Cache.Enabled)
	assert.Equal(t, cfg.Users, got.Users)
}

func TestSave_NilConfig(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "config.yaml"), nil)
	assert.Error(t, err)
}

func TestExpanderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.TTLMinutes = 30
	cfg.Cache.MaxEntries = 50

	opts := cfg.ExpanderOptions()
	assert.True(t, opts.CacheEnabled)
	assert.Equal(t, 30*time.Minute, opts.CacheConfig.TTL)
	assert.Equal(t, 50, opts.CacheConfig.MaxEntries)
}

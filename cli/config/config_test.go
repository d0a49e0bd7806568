package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaselworks/go-stoat/cli/config"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stoat.yaml")

	cfg := &config.Config{
		Version: "1",
		Storage: config.StorageConfig{
			Backend: config.BackendPostgres,
			DSN:     "postgres://localhost/stoat",
			Schema:  "stoat",
		},
	}
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{Version: "1", Storage: config.StorageConfig{Backend: "redis"}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresDSN(t *testing.T) {
	cfg := &config.Config{Version: "1", Storage: config.StorageConfig{Backend: config.BackendSQLite}}
	assert.Error(t, cfg.Validate())

	cfg.Storage.DSN = "stoat.db"
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: ["), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Empty(t, cfg.Server.CORSOrigin)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.False(t, cfg.UseKeyring())
	assert.False(t, cfg.Headless())
	assert.Equal(t, 200*time.Millisecond, cfg.BatchDelay())
	assert.Equal(t, "https://www.linkedin.com/jobs/", cfg.Browser.StartURL)
	assert.Equal(t, "info", cfg.Log.Level)

	timings := cfg.PageTimings()
	assert.Equal(t, time.Second, timings.Settle)
	assert.Equal(t, 1500*time.Millisecond, timings.InitialQuiet)
	assert.Equal(t, time.Second, timings.NavigationQuiet)
	assert.Equal(t, time.Second, timings.PollInterval)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
storage:
  driver: sqlite
  dsn: /tmp/nc
  keyring: true
browser:
  headless: true
timings:
  pollIntervalMs: 250
optimizer:
  batchDelayMs: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.UseKeyring())
	assert.True(t, cfg.Headless())
	assert.Equal(t, 250*time.Millisecond, cfg.PageTimings().PollInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchDelay())

	dsn, err := cfg.StorageDSN()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/nc", dsn)
}

func TestLoad_InvalidDriver(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: redis\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: postgres\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}

func TestStorageDSN_DefaultsToConfigDir(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	dsn, err := cfg.StorageDSN()
	if err != nil {
		t.Skip("no user config directory on this host")
	}
	assert.Equal(t, "nightcrawler", filepath.Base(dsn))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "a missing config file is not an error")

	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.True(t, cfg.Gateway.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.Gateway.RateLimit.RequestsPerMinute)
	assert.Equal(t, "gpt-realtime", cfg.Upstream.Model)
	assert.Equal(t, 10*time.Second, cfg.Upstream.HandshakeTimeout)
	assert.Equal(t, 16, cfg.Transport.QueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.Transport.CloseTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
gateway:
  port: 9999
  host: 0.0.0.0
upstream:
  model: custom-model
  handshake_timeout: 3s
transport:
  queue_capacity: 4
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "0.0.0.0", cfg.Gateway.Host)
	assert.Equal(t, "custom-model", cfg.Upstream.Model)
	assert.Equal(t, 3*time.Second, cfg.Upstream.HandshakeTimeout)
	assert.Equal(t, 4, cfg.Transport.QueueCapacity)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Transport.CloseTimeout)
	assert.Equal(t, 60, cfg.Gateway.RateLimit.RequestsPerMinute)
}

func TestLoadEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("SWITCHBOARD_GATEWAY_PORT", "7777")
	t.Setenv("SWITCHBOARD_UPSTREAM_API_KEY", "sk-from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Gateway.Port)
	assert.Equal(t, "sk-from-env", cfg.Upstream.APIKey)
}

func TestSaveToAndReload(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Upstream.APIKey = "sk-secret"
	cfg.Gateway.Port = 4242

	require.NoError(t, SaveTo(cfg, path))

	// Key material on disk must not be world readable.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	Reset()
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", reloaded.Upstream.APIKey)
	assert.Equal(t, 4242, reloaded.Gateway.Port)
}

func TestGetConfig(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert.Nil(t, GetConfig())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Same(t, cfg, GetConfig())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/x/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "config.yaml"), got)

	got, err = ExpandPath("/absolute/path")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path", got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Contains(t, path, ".switchboard")
}

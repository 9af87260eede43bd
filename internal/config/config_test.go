package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, Duration(30*time.Second), cfg.Session.HeartbeatInterval)
	assert.Equal(t, ":memory:", cfg.Storage.SQLitePath)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MCP_GATEWAY_PORT", "9090")
	t.Setenv("MCP_GATEWAY_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("MCP_GATEWAY_RATE_LIMIT_ENABLED", "true")
	t.Setenv("MCP_GATEWAY_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MCP_GATEWAY_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, Duration(5*time.Second), cfg.Session.HeartbeatInterval)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
server:
  port: 7070
session:
  heartbeat_interval: 10s
storage:
  sqlite_path: /tmp/gateway.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("MCP_GATEWAY_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, Duration(10*time.Second), cfg.Session.HeartbeatInterval)
	assert.Equal(t, "/tmp/gateway.db", cfg.Storage.SQLitePath)
	// Untouched settings keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestEnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))
	t.Setenv("MCP_GATEWAY_CONFIG_FILE", path)
	t.Setenv("MCP_GATEWAY_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "zero heartbeat", mutate: func(c *Config) { c.Session.HeartbeatInterval = 0 }},
		{name: "zero max age", mutate: func(c *Config) { c.Session.MaxAge = 0 }},
		{name: "empty sqlite path", mutate: func(c *Config) { c.Storage.SQLitePath = "" }},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "rate limit zero requests", mutate: func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Requests = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Setenv("MCP_GATEWAY_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

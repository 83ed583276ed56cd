package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 18000
keepalive_seconds = 2

[history]
enabled = false

[tray]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 18000, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.Keepalive())
	assert.Equal(t, time.Second, cfg.ReconcileInterval())
	assert.False(t, cfg.History.Enabled)
	assert.True(t, cfg.Tray.Enabled)
	assert.Equal(t, "127.0.0.1:18000", cfg.Addr())
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: "[server\nport = 1"},
		{name: "public host", content: "[server]\nhost = \"0.0.0.0\""},
		{name: "port", content: "[server]\nport = 70000"},
		{name: "interval", content: "[hotkeys]\nreconcile_interval_ms = 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "localhost", mutate: func(c *Config) { c.Server.Host = "localhost" }},
		{name: "ipv6 loopback", mutate: func(c *Config) { c.Server.Host = "::1" }},
		{name: "lan address", mutate: func(c *Config) { c.Server.Host = "192.168.1.10" }, wantErr: true},
		{name: "hostname", mutate: func(c *Config) { c.Server.Host = "example.com" }, wantErr: true},
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "zero keepalive", mutate: func(c *Config) { c.Server.KeepaliveSeconds = 0 }, wantErr: true},
		{name: "zero queue", mutate: func(c *Config) { c.Server.QueueSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.History.Path = "/tmp/custom.db"

	path, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)
}

func TestAddrIPv6(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "::1"
	assert.Equal(t, "[::1]:17976", cfg.Addr())
}

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "hotkeyrelay"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Hotkeys HotkeysConfig `toml:"hotkeys"`
	History HistoryConfig `toml:"history"`
	Tray    TrayConfig    `toml:"tray"`
}

type ServerConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	KeepaliveSeconds int    `toml:"keepalive_seconds"`
	QueueSize        int    `toml:"queue_size"`
}

type HotkeysConfig struct {
	Enabled             bool `toml:"enabled"`
	ReconcileIntervalMS int  `toml:"reconcile_interval_ms"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type TrayConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             17976,
			KeepaliveSeconds: 5,
			QueueSize:        32,
		},
		Hotkeys: HotkeysConfig{
			Enabled:             true,
			ReconcileIntervalMS: 1000,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "",
		},
		Tray: TrayConfig{
			Enabled: false,
		},
	}
}

// Dir returns the per-user configuration directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}

	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the TOML file at path, or from
// ConfigPath when path is empty.
// If the file doesn't exist, it creates it with default values
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	// If config doesn't exist, create it with defaults
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// save writes the configuration to the TOML file
func save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Validate checks the values a running relay depends on. The server must
// stay on a loopback address since /hello hands out the token.
func (c *Config) Validate() error {
	if !isLoopback(c.Server.Host) {
		return fmt.Errorf("%w: server.host %q is not a loopback address", ErrInvalidConfig, c.Server.Host)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.KeepaliveSeconds <= 0 {
		return fmt.Errorf("%w: server.keepalive_seconds must be positive", ErrInvalidConfig)
	}
	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("%w: server.queue_size must be positive", ErrInvalidConfig)
	}
	if c.Hotkeys.ReconcileIntervalMS <= 0 {
		return fmt.Errorf("%w: hotkeys.reconcile_interval_ms must be positive", ErrInvalidConfig)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Keepalive returns the stream keepalive interval.
func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.Server.KeepaliveSeconds) * time.Second
}

// ReconcileInterval returns how often hook registrations are re-synced.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Hotkeys.ReconcileIntervalMS) * time.Millisecond
}

// HistoryPath returns the SQLite database path, defaulting to the config
// directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

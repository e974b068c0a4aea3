package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Gateway       GatewayConfig       `toml:"gateway"`
	Polling       PollingConfig       `toml:"polling"`
	Notifications NotificationsConfig `toml:"notifications"`
	History       HistoryConfig       `toml:"history"`
}

// GatewayConfig holds connection settings for the automation gateway
type GatewayConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// PollingConfig holds the poll and reload intervals
type PollingConfig struct {
	PollSeconds    int `toml:"poll_seconds"`
	RefreshSeconds int `toml:"refresh_seconds"`
}

// PollInterval returns the per-operation poll interval as a duration.
func (p PollingConfig) PollInterval() time.Duration {
	return time.Duration(p.PollSeconds) * time.Second
}

// RefreshInterval returns the full-reload interval as a duration.
func (p PollingConfig) RefreshInterval() time.Duration {
	return time.Duration(p.RefreshSeconds) * time.Second
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// HistoryConfig holds settings for the local snapshot archive
type HistoryConfig struct {
	DatabasePath string `toml:"database_path"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Gateway: GatewayConfig{
			URL:            "http://localhost:8420",
			TimeoutSeconds: 30,
		},
		Polling: PollingConfig{
			PollSeconds:    2,
			RefreshSeconds: 30,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		History: HistoryConfig{
			DatabasePath: filepath.Join(home, ".local", "share", "opsdash", "history.db"),
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.Gateway.URL = strings.TrimRight(cfg.Gateway.URL, "/")
	cfg.History.DatabasePath = ExpandPath(cfg.History.DatabasePath)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "opsdash", "config.toml")
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	DataDir    string           `yaml:"data_dir"`
	Sportradar SportradarConfig `yaml:"sportradar"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SportradarConfig configures the tennis API client.
type SportradarConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	FixtureDir   string `yaml:"fixture_dir"`
	Timeout      string `yaml:"timeout"`
	MaxRetries   int    `yaml:"max_retries"`
	RequestDelay string `yaml:"request_delay"`
}

// ParseTimeout returns the per-request timeout as time.Duration.
func (s SportradarConfig) ParseTimeout() time.Duration {
	return parseDuration(s.Timeout, 15*time.Second)
}

// ParseRequestDelay returns the pause between endpoint requests.
func (s SportradarConfig) ParseRequestDelay() time.Duration {
	return parseDuration(s.RequestDelay, time.Second)
}

// ScheduleConfig configures the daemon collection interval.
type ScheduleConfig struct {
	CollectInterval string `yaml:"collect_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	return parseDuration(s.CollectInterval, 6*time.Hour)
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinMovement int           `yaml:"min_movement"`
	Slack       SlackConfig   `yaml:"slack"`
	Discord     DiscordConfig `yaml:"discord"`
	Webhook     WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: "debug", "release" or "test"
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DashboardConfig holds the default filters applied when a request or
// command does not name its own. A nil Categories disables the category
// filter; an empty list selects nothing.
type DashboardConfig struct {
	Tier            string   `yaml:"tier"`
	Categories      []string `yaml:"categories"`
	Movement        string   `yaml:"movement"`
	LeaderboardSize int      `yaml:"leaderboard_size"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./tennisradar.db"},
		DataDir:  "./data",
		Sportradar: SportradarConfig{
			BaseURL:      "https://api.sportradar.com/tennis/trial/v3/en",
			FixtureDir:   "./data/sample_api",
			Timeout:      "15s",
			MaxRetries:   3,
			RequestDelay: "1s",
		},
		Schedule: ScheduleConfig{CollectInterval: "6h"},
		Alerts:   AlertsConfig{MinMovement: 5},
		Server:   ServerConfig{Port: 8080, Mode: "release"},
		Log:      LogConfig{Level: "info"},
		Dashboard: DashboardConfig{
			Tier:            "all",
			Movement:        "all",
			LeaderboardSize: 10,
		},
	}
}

// Load reads configuration from a YAML file, loads .env files (".env" when
// none are given) and applies env var overrides. Missing .env files are
// ignored; variables already set in the environment win over them.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sportradar.MaxRetries < 0 {
		return fmt.Errorf("sportradar.max_retries must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q is not one of debug, release, test", c.Server.Mode)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPORTRADAR_API_KEY"); v != "" {
		cfg.Sportradar.APIKey = v
	}
	if v := os.Getenv("TENNISRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TENNISRADAR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TENNISRADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("TENNISRADAR_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("TENNISRADAR_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
}

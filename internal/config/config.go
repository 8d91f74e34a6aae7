// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back in the same string form it is
// read from, so a rewritten config file still parses.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level Switchboard configuration, loaded from
// switchboard.yaml.
type Config struct {
	Registry    string `yaml:"registry"`    // coordinate registry file
	InboxRoot   string `yaml:"inbox_root"`  // one inbox subdirectory per agent
	Monitor     string `yaml:"monitor"`     // monitor context; empty means first declared
	Coordinator string `yaml:"coordinator"` // agent whose inbox receives replies

	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Database  DatabaseConfig  `yaml:"database"`
	Notify    NotifyConfig    `yaml:"notify"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// DispatchConfig tunes the retry chain and dedup behavior. Zero values
// fall back to the dispatcher's built-in defaults.
type DispatchConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`    // default 3
	Backoff        Duration `yaml:"backoff"`         // default 500ms
	AttemptTimeout Duration `yaml:"attempt_timeout"` // per xdotool invocation, default 2s
	DedupWindow    Duration `yaml:"dedup_window"`    // default 2m
	BroadcastDelay Duration `yaml:"broadcast_delay"` // default 250ms
	ReplyTimeout   Duration `yaml:"reply_timeout"`   // default 10m
}

// TrackerConfig tunes the watch daemon's schedules. Zero values fall
// back to the daemon's built-in defaults.
type TrackerConfig struct {
	SweepInterval Duration `yaml:"sweep_interval"` // default 30s
	Retention     Duration `yaml:"retention"`      // default 24h
	CleanupCron   string   `yaml:"cleanup_cron"`   // default "0 3 * * *"
	DigestCron    string   `yaml:"digest_cron"`    // default "0 17 * * *"
}

// DatabaseConfig addresses the delivery journal.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`   // sqlite database file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// NotifyConfig holds notifier adapter settings. An adapter is enabled
// when its token is set.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	GitHub  GitHubConfig  `yaml:"github"`
}

// SlackConfig holds Slack notifier settings.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord notifier settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// GitHubConfig holds GitHub escalation settings.
type GitHubConfig struct {
	Token  string   `yaml:"token"`
	Owner  string   `yaml:"owner"`
	Repo   string   `yaml:"repo"`
	Labels []string `yaml:"labels"`
}

// DashboardConfig holds dashboard server settings.
type DashboardConfig struct {
	Port int `yaml:"port"` // default 8080
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values. Dispatch and
// tracker durations stay zero when unset; the consuming constructors
// carry those defaults.
func (c *Config) applyDefaults() {
	if c.Registry == "" {
		c.Registry = "fleet.yaml"
	}
	if c.Coordinator == "" {
		c.Coordinator = "captain"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "switchboard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "switchboard"
		}
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.InboxRoot == "" {
		errs = append(errs, "inbox_root is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite or mysql)", c.Database.Driver))
	}
	if c.Dispatch.MaxAttempts < 0 {
		errs = append(errs, "dispatch.max_attempts must not be negative")
	}
	for _, d := range []struct {
		name string
		val  Duration
	}{
		{"dispatch.backoff", c.Dispatch.Backoff},
		{"dispatch.attempt_timeout", c.Dispatch.AttemptTimeout},
		{"dispatch.dedup_window", c.Dispatch.DedupWindow},
		{"dispatch.broadcast_delay", c.Dispatch.BroadcastDelay},
		{"dispatch.reply_timeout", c.Dispatch.ReplyTimeout},
		{"tracker.sweep_interval", c.Tracker.SweepInterval},
		{"tracker.retention", c.Tracker.Retention},
	} {
		if d.val < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", d.name))
		}
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a slack token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a discord token is set")
	}
	if c.Notify.GitHub.Token != "" && (c.Notify.GitHub.Owner == "" || c.Notify.GitHub.Repo == "") {
		errs = append(errs, "notify.github.owner and notify.github.repo are required when a github token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Package config provides YAML-based configuration loading for Synapse.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when a field is left unset.
const (
	DefaultStepDelayMs      = 1500
	DefaultMirrorDelayMs    = 500
	DefaultAckDelayMs       = 1000
	DefaultAckText          = "Thank you for contacting us! Our AI agent is processing your request and will provide updates shortly."
	DefaultResolutionPrefix = "✅ Resolution: "
	DefaultCustomerPrefix   = "📱 Update: "
	DefaultDashboardPort    = 8080
	DefaultHistoryMaxRuns   = 500
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

// Config is the top-level Synapse configuration, loaded from synapse.yaml.
type Config struct {
	Timing    TimingConfig    `yaml:"timing"`
	Messages  MessagesConfig  `yaml:"messages"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	History   HistoryConfig   `yaml:"history"`
	Autoplay  AutoplayConfig  `yaml:"autoplay"`
	Relay     RelayConfig     `yaml:"relay"`
	Log       LogConfig       `yaml:"log"`
}

// TimingConfig holds the artificial delays of the simulated agent. A nil
// field takes its default; an explicit 0 disables that delay.
type TimingConfig struct {
	StepDelayMs   *int `yaml:"step_delay_ms"`
	MirrorDelayMs *int `yaml:"mirror_delay_ms"`
	AckDelayMs    *int `yaml:"ack_delay_ms"`
}

// StepDelay is the wait before each scripted step.
func (t TimingConfig) StepDelay() time.Duration {
	return millis(t.StepDelayMs, DefaultStepDelayMs)
}

// MirrorDelay is the wait between a system step and its customer mirror.
func (t TimingConfig) MirrorDelay() time.Duration {
	return millis(t.MirrorDelayMs, DefaultMirrorDelayMs)
}

// AckDelay is the wait before the customer acknowledgement.
func (t TimingConfig) AckDelay() time.Duration {
	return millis(t.AckDelayMs, DefaultAckDelayMs)
}

func millis(v *int, def int) time.Duration {
	return time.Duration(intOr(v, def)) * time.Millisecond
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// MessagesConfig holds the canned texts and prefixes.
type MessagesConfig struct {
	AckText          string `yaml:"ack_text"`
	ResolutionPrefix string `yaml:"resolution_prefix"`
	CustomerPrefix   string `yaml:"customer_prefix"`
}

// DashboardConfig configures the HTTP API.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// HistoryConfig configures the in-memory playback run history.
type HistoryConfig struct {
	Enabled *bool `yaml:"enabled"`
	MaxRuns *int  `yaml:"max_runs"` // 0 keeps every run
}

// RunLimit returns max_runs, or DefaultHistoryMaxRuns when unset.
func (h HistoryConfig) RunLimit() int {
	return intOr(h.MaxRuns, DefaultHistoryMaxRuns)
}

// IsEnabled reports whether run history is on. It defaults to true.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// AutoplayConfig drives unattended demo playback on a cron schedule.
type AutoplayConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Cron      string   `yaml:"cron"`
	Scenarios []string `yaml:"scenarios"`
}

// RelayConfig configures optional mirrors of the channel feeds into chat
// platforms.
type RelayConfig struct {
	Slack   SlackRelayConfig   `yaml:"slack"`
	Discord DiscordRelayConfig `yaml:"discord"`
}

// SlackRelayConfig holds Slack credentials and target channels.
type SlackRelayConfig struct {
	BotToken          string `yaml:"bot_token"`
	CustomerChannel   string `yaml:"customer_channel"`
	OperationsChannel string `yaml:"operations_channel"`
}

// Enabled reports whether the Slack relay is configured.
func (s SlackRelayConfig) Enabled() bool { return s.BotToken != "" }

// DiscordRelayConfig holds Discord credentials and target channels.
type DiscordRelayConfig struct {
	BotToken          string `yaml:"bot_token"`
	CustomerChannel   string `yaml:"customer_channel"`
	OperationsChannel string `yaml:"operations_channel"`
}

// Enabled reports whether the Discord relay is configured.
func (d DiscordRelayConfig) Enabled() bool { return d.BotToken != "" }

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns a validated Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but returns Default when path does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
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

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	defaultInt(&c.Timing.StepDelayMs, DefaultStepDelayMs)
	defaultInt(&c.Timing.MirrorDelayMs, DefaultMirrorDelayMs)
	defaultInt(&c.Timing.AckDelayMs, DefaultAckDelayMs)
	if c.Messages.AckText == "" {
		c.Messages.AckText = DefaultAckText
	}
	if c.Messages.ResolutionPrefix == "" {
		c.Messages.ResolutionPrefix = DefaultResolutionPrefix
	}
	if c.Messages.CustomerPrefix == "" {
		c.Messages.CustomerPrefix = DefaultCustomerPrefix
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = DefaultDashboardPort
	}
	defaultInt(&c.History.MaxRuns, DefaultHistoryMaxRuns)
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// defaultInt points an unset field at def.
func defaultInt(field **int, def int) {
	if *field == nil {
		v := def
		*field = &v
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Timing.StepDelay() < 0 {
		errs = append(errs, "timing.step_delay_ms must not be negative")
	}
	if c.Timing.MirrorDelay() < 0 {
		errs = append(errs, "timing.mirror_delay_ms must not be negative")
	}
	if c.Timing.AckDelay() < 0 {
		errs = append(errs, "timing.ack_delay_ms must not be negative")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}
	if c.History.RunLimit() < 0 {
		errs = append(errs, "history.max_runs must not be negative")
	}
	if c.Autoplay.Enabled {
		if c.Autoplay.Cron == "" {
			errs = append(errs, "autoplay.cron is required when autoplay is enabled")
		}
		if len(c.Autoplay.Scenarios) == 0 {
			errs = append(errs, "autoplay.scenarios needs at least one entry when autoplay is enabled")
		}
		for i, s := range c.Autoplay.Scenarios {
			if strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Sprintf("autoplay.scenarios[%d] is empty", i))
			}
		}
	}
	if c.Relay.Slack.Enabled() && c.Relay.Slack.CustomerChannel == "" && c.Relay.Slack.OperationsChannel == "" {
		errs = append(errs, "relay.slack needs customer_channel or operations_channel")
	}
	if c.Relay.Discord.Enabled() && c.Relay.Discord.CustomerChannel == "" && c.Relay.Discord.OperationsChannel == "" {
		errs = append(errs, "relay.discord needs customer_channel or operations_channel")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

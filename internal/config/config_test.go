package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
timing:
  step_delay_ms: 200
  mirror_delay_ms: 50
  ack_delay_ms: 100

messages:
  ack_text: "We are on it."
  resolution_prefix: "RESOLVED: "
  customer_prefix: "Update: "

dashboard:
  port: 9090

history:
  enabled: false
  max_runs: 20

autoplay:
  enabled: true
  cron: "*/5 * * * *"
  scenarios:
    - "Traffic accident on Route 101, customer going to airport"
    - "Restaurant running 40 minutes late"

relay:
  slack:
    bot_token: xoxb-test
    customer_channel: C-CUST
    operations_channel: C-OPS
  discord:
    bot_token: discord-test
    operations_channel: "123456"

log:
  level: debug
  format: json
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, cfg.Timing.StepDelay())
	assert.Equal(t, 50*time.Millisecond, cfg.Timing.MirrorDelay())
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.AckDelay())
	assert.Equal(t, "We are on it.", cfg.Messages.AckText)
	assert.Equal(t, "RESOLVED: ", cfg.Messages.ResolutionPrefix)
	assert.Equal(t, "Update: ", cfg.Messages.CustomerPrefix)
	assert.Equal(t, 9090, cfg.Dashboard.Port)
	assert.False(t, cfg.History.IsEnabled())
	assert.Equal(t, 20, cfg.History.RunLimit())
	assert.True(t, cfg.Autoplay.Enabled)
	assert.Equal(t, "*/5 * * * *", cfg.Autoplay.Cron)
	assert.Len(t, cfg.Autoplay.Scenarios, 2)
	assert.True(t, cfg.Relay.Slack.Enabled())
	assert.Equal(t, "C-OPS", cfg.Relay.Slack.OperationsChannel)
	assert.True(t, cfg.Relay.Discord.Enabled())
	assert.Empty(t, cfg.Relay.Discord.CustomerChannel)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Timing.StepDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.MirrorDelay())
	assert.Equal(t, time.Second, cfg.Timing.AckDelay())
	assert.Equal(t, DefaultAckText, cfg.Messages.AckText)
	assert.Equal(t, DefaultResolutionPrefix, cfg.Messages.ResolutionPrefix)
	assert.Equal(t, DefaultCustomerPrefix, cfg.Messages.CustomerPrefix)
	assert.Equal(t, DefaultDashboardPort, cfg.Dashboard.Port)
	assert.True(t, cfg.History.IsEnabled())
	assert.Equal(t, DefaultHistoryMaxRuns, cfg.History.RunLimit())
	assert.False(t, cfg.Autoplay.Enabled)
	assert.False(t, cfg.Relay.Slack.Enabled())
	assert.False(t, cfg.Relay.Discord.Enabled())
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestDefault_MatchesEmptyParse(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, parsed, Default())
}

func TestParse_ExplicitZeroIsKept(t *testing.T) {
	cfg, err := Parse([]byte(`
timing: {step_delay_ms: 0, mirror_delay_ms: 0, ack_delay_ms: 0}
history: {max_runs: 0}
`))
	require.NoError(t, err)

	assert.Zero(t, cfg.Timing.StepDelay())
	assert.Zero(t, cfg.Timing.MirrorDelay())
	assert.Zero(t, cfg.Timing.AckDelay())
	assert.Zero(t, cfg.History.RunLimit(), "0 keeps every run")
}

func TestZeroValueConfig_UsesDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, 1500*time.Millisecond, cfg.Timing.StepDelay())
	assert.Equal(t, DefaultHistoryMaxRuns, cfg.History.RunLimit())
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative step delay", "timing: {step_delay_ms: -1}", "step_delay_ms must not be negative"},
		{"negative mirror delay", "timing: {mirror_delay_ms: -5}", "mirror_delay_ms must not be negative"},
		{"negative ack delay", "timing: {ack_delay_ms: -5}", "ack_delay_ms must not be negative"},
		{"port out of range", "dashboard: {port: 70000}", "out of range"},
		{"negative max runs", "history: {max_runs: -3}", "max_runs must not be negative"},
		{"autoplay without cron", "autoplay: {enabled: true, scenarios: [x]}", "autoplay.cron is required"},
		{"autoplay without scenarios", "autoplay: {enabled: true, cron: '* * * * *'}", "at least one entry"},
		{"autoplay blank scenario", "autoplay: {enabled: true, cron: '* * * * *', scenarios: ['  ']}", "scenarios[0] is empty"},
		{"slack without channels", "relay: {slack: {bot_token: x}}", "relay.slack needs"},
		{"discord without channels", "relay: {discord: {bot_token: x}}", "relay.discord needs"},
		{"bad log format", "log: {format: xml}", "must be console or json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("timing: {step_delay_ms: -1, ack_delay_ms: -1}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step_delay_ms")
	assert.Contains(t, err.Error(), "; ")
	assert.Contains(t, err.Error(), "ack_delay_ms")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("timing: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: parse")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Dashboard.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOrDefault_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {format: xml}"), 0o644))

	_, err := LoadOrDefault(path)
	require.Error(t, err)
}

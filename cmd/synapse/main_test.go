package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/synapse/internal/config"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "synapse dev") {
		t.Errorf("expected output to contain 'synapse dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"synapse 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCmd(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"serve", "replay", "classify", "scenarios", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help missing subcommand %q", sub)
		}
	}
}

func TestExecute_ReturnsExitCode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"classify"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute = %d, want 1 for missing argument", code)
	}
}

func TestClassifyCmd(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"classify", "Traffic", "accident", "on", "Route", "101"}, `traffic (keyword "traffic")`},
		{[]string{"classify", "Restaurant is slow"}, `merchant (keyword "restaurant")`},
		{[]string{"classify", "package damaged"}, `dispute (keyword "damage")`},
		{[]string{"classify", "Customer not home"}, "delivery (no keyword matched, fallback)"},
	}
	for _, tt := range tests {
		out, err := runCmd(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("%v output = %q, want %q", tt.args, out, tt.want)
		}
	}
}

func TestClassifyCmd_ListsTools(t *testing.T) {
	out, err := runCmd(t, "classify", "traffic jam")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !strings.Contains(out, "tool: check_traffic") || !strings.Contains(out, "tool: calculate_alternative_route") {
		t.Errorf("output missing traffic tools: %s", out)
	}
}

func TestScenariosCmd(t *testing.T) {
	out, err := runCmd(t, "scenarios")
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	for _, want := range []string{"traffic", "merchant", "dispute", "delivery", "(fallback)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "[thought]") {
		t.Error("steps printed without --verbose")
	}
}

func TestScenariosCmd_Verbose(t *testing.T) {
	out, err := runCmd(t, "scenarios", "--verbose")
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	if got := strings.Count(out, "[system]"); got != 4 {
		t.Errorf("system steps = %d, want one per category", got)
	}
}

func TestReplayCmd_Instant(t *testing.T) {
	out, err := runCmd(t, "replay", "--instant", "--color", "never",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"Traffic accident on Route 101")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out, "Scenario: traffic") {
		t.Errorf("missing scenario line: %s", out)
	}
	if !strings.Contains(out, "== customer (1 messages) ==") {
		t.Errorf("customer transcript header wrong: %s", out)
	}
	if !strings.Contains(out, "== operations (5 messages) ==") {
		t.Errorf("operations transcript header wrong: %s", out)
	}
	if !strings.Contains(out, "<agent/system> 📱 Update: Customer and driver notified of optimized route.") {
		t.Errorf("missing customer mirror: %s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("escape codes printed with --color never")
	}
}

func TestReplayCmd_WithCustomerMessage(t *testing.T) {
	out, err := runCmd(t, "replay", "--instant", "--color", "never",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--customer", "Where is my order?", "restaurant delay")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out, "== customer (3 messages) ==") {
		t.Errorf("want human, ack and mirror in customer log: %s", out)
	}
	if !strings.Contains(out, "<human> Where is my order?") {
		t.Errorf("missing customer input: %s", out)
	}
	for _, want := range []string{
		"[+  1.0s] <agent> Thank you for contacting us!",
		"[+  6.5s] <agent/system> 📱 Update:",
		"[+  1.5s] <agent/thought>",
		"[+  6.0s] <agent/system> ✅ Resolution:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestReplayCmd_InvalidColor(t *testing.T) {
	_, err := runCmd(t, "replay", "--instant", "--color", "rainbow",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"), "traffic")
	if err == nil || !strings.Contains(err.Error(), "invalid --color") {
		t.Errorf("err = %v, want invalid --color", err)
	}
}

func TestReplayCmd_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	if err := os.WriteFile(path, []byte("timing:\n  step_delay_ms: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "replay", "--instant", "--config", path, "traffic")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("err = %v, want load config error", err)
	}
}

func TestServeCmd_Help(t *testing.T) {
	out, err := runCmd(t, "serve", "--help")
	if err != nil {
		t.Fatalf("serve --help: %v", err)
	}
	for _, flag := range []string{"--config", "--port", "--echo"} {
		if !strings.Contains(out, flag) {
			t.Errorf("help missing %s: %s", flag, out)
		}
	}
}

func TestServeCmd_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	if err := os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "serve", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("err = %v, want load config error", err)
	}
}

func TestBuildSinks(t *testing.T) {
	cfg := config.Default()
	sinks, err := buildSinks(cfg, false, new(bytes.Buffer))
	if err != nil {
		t.Fatalf("buildSinks: %v", err)
	}
	if len(sinks) != 0 {
		t.Errorf("sinks = %d, want 0 with nothing configured", len(sinks))
	}

	cfg.Relay.Slack = config.SlackRelayConfig{BotToken: "xoxb-test", OperationsChannel: "C1"}
	cfg.Relay.Discord = config.DiscordRelayConfig{BotToken: "token", CustomerChannel: "123"}
	sinks, err = buildSinks(cfg, true, new(bytes.Buffer))
	if err != nil {
		t.Fatalf("buildSinks: %v", err)
	}
	var names []string
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	if got := strings.Join(names, ","); got != "writer,slack,discord" {
		t.Errorf("sinks = %s, want writer,slack,discord", got)
	}
}

func TestUseColor(t *testing.T) {
	buf := new(bytes.Buffer)
	if c, _ := useColor("always", buf); !c {
		t.Error("always should color")
	}
	if c, _ := useColor("never", buf); c {
		t.Error("never should not color")
	}
	if c, _ := useColor("auto", buf); c {
		t.Error("auto should not color a buffer")
	}
}

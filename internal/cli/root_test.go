package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSettings(t *testing.T, dir string, settings config.Settings) string {
	t.Helper()
	path := filepath.Join(dir, "settings.json")
	if err := config.SaveSettings(path, settings); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
	return path
}

func TestOverrides(t *testing.T) {
	o := &options{}
	if got := o.overrides(); got != (config.CLIOverrides{}) {
		t.Fatalf("expected no overrides, got %+v", got)
	}

	for _, set := range []struct {
		value interface{ Set(string) error }
		input string
	}{
		{&o.interval, "2s"},
		{&o.timeout, "500ms"},
		{&o.maxConcurrency, "4"},
		{&o.metricsListen, ":9100"},
		{&o.logLevel, "DEBUG"},
		{&o.noUI, "true"},
	} {
		if err := set.value.Set(set.input); err != nil {
			t.Fatalf("set %q: %v", set.input, err)
		}
	}

	got := o.overrides()
	if got.HealthCheckInterval == nil || *got.HealthCheckInterval != 2*time.Second {
		t.Errorf("interval: %v", got.HealthCheckInterval)
	}
	if got.NodeTimeout == nil || *got.NodeTimeout != 500*time.Millisecond {
		t.Errorf("timeout: %v", got.NodeTimeout)
	}
	if got.MaxConcurrentChecks == nil || *got.MaxConcurrentChecks != 4 {
		t.Errorf("max concurrency: %v", got.MaxConcurrentChecks)
	}
	if got.MetricsListen == nil || *got.MetricsListen != ":9100" {
		t.Errorf("metrics listen: %v", got.MetricsListen)
	}
	if got.LogLevel == nil || *got.LogLevel != "debug" {
		t.Errorf("log level: %v", got.LogLevel)
	}
	if got.UIDisable == nil || !*got.UIDisable {
		t.Errorf("ui disable: %v", got.UIDisable)
	}
}

func TestOverridesIgnoreEmptyMetricsListen(t *testing.T) {
	o := &options{}
	if err := o.metricsListen.Set(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := o.overrides(); got.MetricsListen != nil {
		t.Fatalf("expected empty listen address to be ignored, got %q", *got.MetricsListen)
	}
}

func TestRootCommandRejectsInvalidLogLevel(t *testing.T) {
	_, err := executeCommand(t, "version", "--log-level", "verbose")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected invalid log level error, got %v", err)
	}
}

func TestVersionShort(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	defer SetVersionInfo("dev", "none", "unknown")

	out, err := executeCommand(t, "version", "--short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1.2.3\n" {
		t.Fatalf("expected short version, got %q", out)
	}

	out, err = executeCommand(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "nodeboard v1.2.3") || !strings.Contains(out, "commit: abc") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestNodesAddListRemove(t *testing.T) {
	dir := t.TempDir()
	settingsPath := writeSettings(t, dir, config.DefaultSettings())

	out, err := executeCommand(t, "-s", settingsPath, "nodes", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "no nodes configured") {
		t.Fatalf("expected empty list message, got %q", out)
	}

	if _, err := executeCommand(t, "-s", settingsPath, "nodes", "add", "web01", "10.0.0.11"); err != nil {
		t.Fatalf("add web01: %v", err)
	}
	if _, err := executeCommand(t, "-s", settingsPath, "nodes", "add", "sw01", "10.0.0.2", "--type", "Telnet"); err != nil {
		t.Fatalf("add sw01: %v", err)
	}
	if _, err := executeCommand(t, "-s", settingsPath, "nodes", "add", "web01", "10.0.0.12"); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}

	nodes, err := config.LoadNodes(filepath.Join(dir, config.DefaultNodesFile))
	if err != nil {
		t.Fatalf("load nodes: %v", err)
	}
	if len(nodes) != 2 || nodes[1].Type != config.NodeTypeTelnet {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}

	out, err = executeCommand(t, "-s", settingsPath, "nodes", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "web01") || !strings.Contains(out, "10.0.0.2") || !strings.Contains(out, "telnet") {
		t.Fatalf("unexpected list output: %q", out)
	}

	if _, err := executeCommand(t, "-s", settingsPath, "nodes", "remove", "web01"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := executeCommand(t, "-s", settingsPath, "nodes", "rm", "web01"); err == nil {
		t.Fatalf("expected removing a missing node to fail")
	}
}

func TestCheckWithoutNodes(t *testing.T) {
	dir := t.TempDir()
	settingsPath := writeSettings(t, dir, config.DefaultSettings())

	out, err := executeCommand(t, "-s", settingsPath, "check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "no nodes configured in "+filepath.Join(dir, config.DefaultNodesFile)) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCheckMalformedNodesFails(t *testing.T) {
	dir := t.TempDir()
	settingsPath := writeSettings(t, dir, config.DefaultSettings())
	nodesPath := filepath.Join(dir, config.DefaultNodesFile)
	if err := os.WriteFile(nodesPath, []byte(`{"nodes": [ {"name":`), 0o644); err != nil {
		t.Fatalf("write nodes: %v", err)
	}

	for _, args := range [][]string{{"check"}, {"check", "--strict"}} {
		out, err := executeCommand(t, append([]string{"-s", settingsPath}, args...)...)
		if err == nil || !strings.Contains(err.Error(), "load configuration") {
			t.Fatalf("%v: expected load error, got %v", args, err)
		}
		if strings.Contains(out, "no nodes configured") {
			t.Fatalf("%v: malformed file reported as empty: %q", args, out)
		}
	}
}

func TestCheckStrictFailsOnUnreachableNode(t *testing.T) {
	dir := t.TempDir()
	settings := config.DefaultSettings()
	settings.NodeTimeout = 0.2
	settingsPath := writeSettings(t, dir, settings)
	nodesPath := filepath.Join(dir, config.DefaultNodesFile)
	// 192.0.2.0/24 is reserved for documentation and never answers.
	if err := config.SaveNodes(nodesPath, []config.Node{{Name: "ghost", IP: "192.0.2.1", Type: config.NodeTypeSSH}}); err != nil {
		t.Fatalf("save nodes: %v", err)
	}

	out, err := executeCommand(t, "-s", settingsPath, "check", "--strict")
	if err == nil {
		t.Fatalf("expected strict check to fail, output %q", out)
	}
	if !strings.Contains(out, "ghost") || strings.Contains(out, " Healthy ") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLogsFiltersEntries(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nodeboard.log")
	lines := strings.Join([]string{
		`{"timestamp":"2026-01-01T00:00:00Z","level":"INFO","message":"check cycle completed","category":"NETWORK","nodes":3}`,
		`{"timestamp":"2026-01-01T00:00:01Z","level":"WARN","message":"batch join timeout","category":"NETWORK","batch":1}`,
		`{"timestamp":"2026-01-01T00:00:02Z","level":"ERROR","message":"load failed","category":"CONFIG"}`,
		`not json at all`,
	}, "\n") + "\n"
	if err := os.WriteFile(logPath, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	settings := config.DefaultSettings()
	settings.LogFile = logPath
	settingsPath := writeSettings(t, dir, settings)

	out, err := executeCommand(t, "-s", settingsPath, "logs", "--category", "network", "--level", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "2026-01-01T00:00:01Z WARN  [NETWORK] batch join timeout batch=1\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}

	out, err = executeCommand(t, "-s", settingsPath, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "not json at all\n" {
		t.Fatalf("expected raw last line, got %q", out)
	}
}

func TestScriptsListAndRun(t *testing.T) {
	dir := t.TempDir()
	settings := config.DefaultSettings()
	settings.LogDir = filepath.Join(dir, "logs")
	settings.Scripts = []config.ScriptConfig{
		{Name: "ok", Command: "sh", Args: []string{"-c", "echo done"}},
		{Name: "bad", Command: "sh", Args: []string{"-c", "exit 3"}},
	}
	settingsPath := writeSettings(t, dir, settings)

	out, err := executeCommand(t, "-s", settingsPath, "scripts", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "1  ok") || !strings.Contains(out, "sh -c exit 3") {
		t.Fatalf("unexpected list output: %q", out)
	}

	out, err = executeCommand(t, "-s", settingsPath, "scripts", "run", "ok")
	if err != nil {
		t.Fatalf("run ok: %v (%s)", err, out)
	}
	if !strings.Contains(out, "ok exited (exit code 0)") {
		t.Fatalf("unexpected run output: %q", out)
	}
	logData, err := os.ReadFile(filepath.Join(settings.LogDir, "ok.log"))
	if err != nil {
		t.Fatalf("read script log: %v", err)
	}
	if !strings.Contains(string(logData), "done") {
		t.Fatalf("script output missing from log: %q", logData)
	}

	if _, err := executeCommand(t, "-s", settingsPath, "scripts", "run", "bad"); err == nil {
		t.Fatalf("expected failing script to return an error")
	}
	if _, err := executeCommand(t, "-s", settingsPath, "scripts", "run", "missing"); err == nil {
		t.Fatalf("expected unknown script to return an error")
	}
}

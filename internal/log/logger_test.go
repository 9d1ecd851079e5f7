package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLoggerWritesCategoryAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, &buf)

	logger.Info(CategoryNetwork, "scheduler started", zap.Int("nodes", 3))
	_ = logger.Sync()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["level"] != "INFO" || entry["message"] != "scheduler started" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["category"] != "NETWORK" {
		t.Fatalf("expected NETWORK category, got %v", entry["category"])
	}
	if entry["nodes"] != float64(3) {
		t.Fatalf("expected nodes field, got %v", entry["nodes"])
	}
	if _, err := time.Parse(time.RFC3339, entry["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn, &buf)

	logger.Debug(CategoryNetwork, "debug")
	logger.Info(CategoryNetwork, "info")
	logger.Warn(CategoryNetwork, "warn")
	logger.Error(CategoryError, "error")

	if lines := decodeLines(t, &buf); len(lines) != 2 {
		t.Fatalf("expected 2 lines at warn level, got %d", len(lines))
	}

	buf.Reset()
	logger.SetLevel(LevelDebug)
	logger.Debug(CategoryNetwork, "debug")
	if lines := decodeLines(t, &buf); len(lines) != 1 {
		t.Fatalf("expected debug line after SetLevel, got %d", len(lines))
	}
}

func TestLogConfigLoadAndLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug, &buf)

	logger.LogConfigLoad(true, "/tmp/settings.json", nil)
	logger.LogConfigLoad(false, "/tmp/settings.json", errors.New("boom"))
	logger.LogError("scheduler", errors.New("cycle failed"))

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["category"] != "CONFIG" || lines[0]["level"] != "INFO" {
		t.Fatalf("unexpected config load line: %v", lines[0])
	}
	if lines[1]["category"] != "ERROR" || lines[1]["error"] != "boom" {
		t.Fatalf("unexpected config failure line: %v", lines[1])
	}
	if lines[2]["component"] != "scheduler" {
		t.Fatalf("expected component field, got %v", lines[2])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"WARN":    LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTailFiltersAndLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodeboard.log")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	logger := NewLogger(LevelDebug, file)
	logger.Info(CategoryNetwork, "first")
	logger.Error(CategoryError, "broken", zap.String("node", "R1"))
	logger.Info(CategoryNetwork, "second")
	logger.Warn(CategoryNetwork, "third")
	logger.Info(CategoryProcess, "script started")
	_ = logger.Sync()
	file.WriteString("not json at all\n")
	file.Close()

	entries, err := Tail(path, 2, Filter{Category: CategoryNetwork})
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "second" || entries[1].Message != "third" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	entries, err = Tail(path, 0, Filter{MinLevel: LevelError})
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(entries) != 1 || entries[0].Fields["node"] != "R1" {
		t.Fatalf("expected single error entry with node field, got %+v", entries)
	}

	entries, err = Tail(path, 0, Filter{Contains: "NOT JSON"})
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "not json at all" {
		t.Fatalf("expected raw line, got %+v", entries)
	}
}

func TestTailMissingFile(t *testing.T) {
	entries, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 10, Filter{})
	if err != nil || entries != nil {
		t.Fatalf("expected no entries and no error, got %v %v", entries, err)
	}
}

/*-------------------------------------------------------------------------
 *
 * LATS Admin - Structured Logging Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// capture redirects log output to a buffer at the given level
func capture(t *testing.T, l LogLevel) *bytes.Buffer {
	t.Helper()
	original := GetLevel()
	previous := current.Load()
	t.Cleanup(func() {
		SetLevel(original)
		current.Store(previous)
	})

	var buf bytes.Buffer
	SetLevel(l)
	SetOutput(&buf)
	return &buf
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" INFO ", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelError, false},
		{"", LevelError, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSetAndGetLevel(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	for _, l := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		SetLevel(l)
		if got := GetLevel(); got != l {
			t.Errorf("GetLevel() = %v, want %v", got, l)
		}
	}
}

func TestLogOutput(t *testing.T) {
	buf := capture(t, LevelDebug)

	Info("test message", "key1", "value1", "key2", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want 'test message'", entry["msg"])
	}
	if entry["key1"] != "value1" {
		t.Errorf("key1 = %v, want 'value1'", entry["key1"])
	}
	if entry["key2"] != float64(42) {
		t.Errorf("key2 = %v, want 42", entry["key2"])
	}
	if entry["time"] == nil {
		t.Error("time is missing")
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("debug message")
	Info("info message")
	if buf.Len() > 0 {
		t.Errorf("messages below WARN should be dropped, got %s", buf.String())
	}

	Warn("warn message")
	Error("error message")

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Error("output should contain the WARN entry")
	}
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Error("output should contain the ERROR entry")
	}
}

func TestComponent(t *testing.T) {
	buf := capture(t, LevelInfo)

	Component("database").Info("connected", "host", "db.example.com")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if entry["component"] != "database" {
		t.Errorf("component = %v, want database", entry["component"])
	}
}

func TestFanoutToMultipleWriters(t *testing.T) {
	capture(t, LevelInfo)

	var a, b bytes.Buffer
	SetOutput(&a, &b)
	Info("batch written", "batch", 3)

	if !strings.Contains(a.String(), "batch written") || !strings.Contains(b.String(), "batch written") {
		t.Errorf("both writers should receive the entry: %q / %q", a.String(), b.String())
	}
}

func TestSetupWithFile(t *testing.T) {
	capture(t, LevelInfo)

	path := filepath.Join(t.TempDir(), "lats.log")
	closeFn, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	Info("import started", "source", "contacts.csv")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "import started") {
		t.Errorf("log file should contain the entry, got %q", string(data))
	}
}

func TestSetupBadPath(t *testing.T) {
	capture(t, LevelInfo)

	_, err := Setup(filepath.Join(t.TempDir(), "missing", "dir", "lats.log"))
	if err == nil {
		t.Fatal("expected an error for an unwritable log path")
	}
}

// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// resetGlobal clears the global logger so each test can re-Init.
func resetGlobal() {
	global = nil
	once = sync.Once{}
}

// TestInit verifies logger initialization.
func TestInit(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil after Init()")
	}
	if logger.out != &buf {
		t.Error("Init() did not set output writer correctly")
	}
	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// TestInit_idempotent verifies Init is idempotent.
func TestInit_idempotent(t *testing.T) {
	resetGlobal()

	var buf1 bytes.Buffer
	Init(&buf1, LevelInfo)
	first := Get()

	var buf2 bytes.Buffer
	Init(&buf2, LevelDebug)

	if Get() != first {
		t.Error("Second Init() should be ignored, different logger returned")
	}
}

// TestLogOutput verifies the JSON structure of emitted entries.
func TestLogOutput(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelDebug)

	Info("visit queued", map[string]interface{}{"local_id": 7})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v\n%s", err, buf.String())
	}

	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
	if entry["message"] != "visit queued" {
		t.Errorf("message = %v, want 'visit queued'", entry["message"])
	}
	ctx, ok := entry["context"].(map[string]interface{})
	if !ok {
		t.Fatalf("context missing or wrong type: %v", entry["context"])
	}
	if ctx["local_id"] != float64(7) {
		t.Errorf("context local_id = %v, want 7", ctx["local_id"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

// TestErrorField verifies errors are carried in a dedicated field.
func TestErrorField(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelDebug)

	Error("submission failed", errors.New("connection refused"), nil)

	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("Expected error text in output: %s", buf.String())
	}
}

// TestLevelFiltering verifies entries below the minimum level are dropped.
func TestLevelFiltering(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelWarn)

	Debug("ignored", nil)
	Info("ignored too", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected debug/info suppressed at warn level: %s", buf.String())
	}

	Warn("kept", nil)
	if buf.Len() == 0 {
		t.Error("Expected warn entry emitted")
	}
}

// TestSetMinLevel verifies the level can be raised and lowered at runtime.
func TestSetMinLevel(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelError)

	Info("dropped", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected info suppressed: %s", buf.String())
	}

	Get().SetMinLevel(LevelDebug)
	Info("kept", nil)
	if buf.Len() == 0 {
		t.Error("Expected info emitted after lowering min level")
	}
}

// TestParseLevel verifies config-style level names map correctly.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

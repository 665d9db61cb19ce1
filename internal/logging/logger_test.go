package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "json", &buf)

	logger.Info("dropped")
	logger.Warn("kept", "arf_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["arf_id"] != "abc" {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_DoesNotReplaceDefault(t *testing.T) {
	before := slog.Default()
	New("debug", "text", &bytes.Buffer{})
	if slog.Default() != before {
		t.Error("New() replaced the default logger")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "text", &buf)

	ctx := NewContext(context.Background(), logger)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-42")

	WithFields(ctx, "arf_id", "xyz").Info("saved")

	out := buf.String()
	for _, want := range []string{"request_id=req-42", "arf_id=xyz", "msg=saved"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("FromContext() returned nil")
	}
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("fallback logger should discard records")
	}
}

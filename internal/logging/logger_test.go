package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got %q", cfg.Format)
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	Info().Str("source", "systemd.system").Msg("unit state changed")

	out := buf.String()
	if !strings.Contains(out, "unit state changed") {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("expected level field in output, got: %s", out)
	}
}

func TestInitRespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})

	Debug().Msg("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected debug message to be suppressed at warn level, got: %s", buf.String())
	}

	Warn().Msg("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn message to be logged, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, c := range cases {
		if got := parseLevel(c.input); got != c.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", c.input, got, c.expected)
		}
	}
}

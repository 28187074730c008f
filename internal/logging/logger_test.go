package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_Levels(t *testing.T) {
	messages := []string{"trace", "debug", "info", "warn", "error"}

	tests := []struct {
		level   string
		visible int // messages from this index on are logged
	}{
		{"trace", 0},
		{"debug", 1},
		{"info", 2},
		{"warn", 3},
		{"error", 4},
		{"invalid", 2},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tc.level, Output: &buf})

			logger.Trace().Msg("trace message")
			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Warn().Msg("warn message")
			logger.Error().Msg("error message")

			output := buf.String()
			for i, m := range messages {
				logged := strings.Contains(output, m+" message")
				if logged != (i >= tc.visible) {
					t.Errorf("level %s: %s message logged = %v", tc.level, m, logged)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	levels := map[string]zerolog.Level{
		"trace": zerolog.TraceLevel,
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for name, want := range levels {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "modulefinder")

	logger.Info().Msg("scan complete")

	output := buf.String()
	if !strings.Contains(output, `"component":"modulefinder"`) {
		t.Errorf("expected component field in %q", output)
	}
	if !strings.Contains(output, "scan complete") {
		t.Errorf("expected message in %q", output)
	}
}

func TestNew_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, NoColor: true, Output: &buf})

	logger.Info().Int("count", 3).Msg("read modules")

	output := buf.String()
	if !strings.Contains(output, "read modules") || !strings.Contains(output, "count=3") {
		t.Errorf("unexpected pretty output %q", output)
	}
}

func TestNew_DefaultOutput(t *testing.T) {
	// Must not panic when Output is nil.
	logger := New(Config{Level: "error"})
	logger.Debug().Msg("dropped")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("expected default pretty to be true")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default pretty = true, want false")
	}
	if cfg.Output == nil {
		t.Error("default output = nil, want stderr")
	}
}

func TestSetupWritesToConfiguredOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDebug, Output: buf})

	logger.Debug().Str("encoding", "gbk").Msg("resolved response encoding")

	output := buf.String()
	if !strings.Contains(output, "resolved response encoding") {
		t.Errorf("output = %q, want log message present", output)
	}
	if !strings.Contains(output, "gbk") {
		t.Errorf("output = %q, want context field present", output)
	}
}

func TestSetupNilOutputDoesNotPanic(t *testing.T) {
	// Callers that omit Output get stderr.
	logger := Setup(Config{Level: LevelError})
	logger.Error().Msg("boot")
}

func TestSetupPretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("pretty message")

	if !strings.Contains(buf.String(), "pretty message") {
		t.Errorf("output = %q, want console-formatted message", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerTagsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("scheduler")
	logger.Info().Int("index", 3).Msg("task finished")

	output := buf.String()
	if !strings.Contains(output, "scheduler") {
		t.Errorf("output = %q, want component tag", output)
	}
	if !strings.Contains(output, "task finished") {
		t.Errorf("output = %q, want message", output)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("retry")
	logger.Debug().Msg("attempt detail")
	logger.Info().Msg("batch done")
	logger.Warn().Msg("backing off")
	logger.Error().Msg("retries exhausted")

	output := buf.String()
	for _, hidden := range []string{"attempt detail", "batch done"} {
		if strings.Contains(output, hidden) {
			t.Errorf("%q should be filtered at warn level", hidden)
		}
	}
	for _, shown := range []string{"backing off", "retries exhausted"} {
		if !strings.Contains(output, shown) {
			t.Errorf("%q missing at warn level", shown)
		}
	}
}

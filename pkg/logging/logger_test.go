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
		t.Errorf("Expected default level to be info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "warn", want: LevelWarn},
		{input: "warning", want: LevelWarn},
		{input: " error ", want: LevelError},
		{input: "", want: LevelInfo},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := zerologLevel(tt.input); got != tt.want {
				t.Errorf("zerologLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_Service(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf, Service: "cachectl"})

	logger := NewLogger("cache")
	logger.Info().Str("namespace", "search").Msg("Using memory cache")

	output := buf.String()
	for _, want := range []string{`"service":"cachectl"`, `"component":"cache"`, `"namespace":"search"`, "Using memory cache"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got %q", want, output)
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := NewLogger("test")
	logger.Debug().Msg("cache hit")
	logger.Info().Msg("backend selected")
	logger.Warn().Msg("read failed")
	logger.Error().Msg("config invalid")

	output := buf.String()
	if strings.Contains(output, "cache hit") {
		t.Error("Debug message should be filtered out at warn level")
	}
	if strings.Contains(output, "backend selected") {
		t.Error("Info message should be filtered out at warn level")
	}
	if !strings.Contains(output, "read failed") {
		t.Error("Warn message should be included at warn level")
	}
	if !strings.Contains(output, "config invalid") {
		t.Error("Error message should be included at warn level")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger("cache")
	logger.Info().Msg("pretty line")

	output := buf.String()
	if !strings.Contains(output, "pretty line") {
		t.Errorf("Expected output to contain message, got %q", output)
	}
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Expected console output, got JSON %q", output)
	}
}

// Package logging configures zerolog for cachekit binaries and libraries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a textual log level as read from LOG_LEVEL.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written
	Level LogLevel

	// Pretty switches from JSON lines to console output
	Pretty bool

	// Output receives log lines (default: os.Stderr)
	Output io.Writer

	// Service is added to every line as "service" when set
	Service string
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name. "warning" is accepted for warn and the
// empty string selects info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn, "warning":
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-operation detail
//   - cache hit / miss with key
//   - values stored, with ttl_seconds
//   - prefix deletes with removed count
//
// Info: lifecycle
//   - backend selected at startup
//   - server start / shutdown
//
// Warn: degraded but serving
//   - read failures reported as misses (backend error, undecodable payload)
//   - Redis unreachable, falling back to memory
//   - fetched value could not be cached
//
// Error: the operation failed for the caller
//   - startup configuration errors
//   - HTTP handler write failures
//
// Context Fields:
//   - component: cache, server, cachectl
//   - namespace: cache namespace
//   - backend: memory or redis
//   - key / prefix: logical cache key
//   - ttl_seconds: ttl requested on Set

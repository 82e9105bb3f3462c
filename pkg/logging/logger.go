// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every attempt and state transition.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs walks, endpoint choices and recoveries.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, fallbacks and partial results.
	LevelWarn LogLevel = "warn"

	// LevelError logs aborted walks only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name as read from the environment.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// Setup configures the global zerolog logger. The CSV output goes to
// stdout, so logs default to stderr.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevel converts LogLevel to zerolog.Level.
func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: one line per attempt
//   - Attempt outcome with from/to state
//   - Pages collected during a walk
//   - Cache hits and weight updates
//
// Info: normal operation
//   - Endpoint resolution result
//   - Walk start and completion
//   - Success after one or more retries
//
// Warn: degraded but continuing
//   - Backoff waits and fallback switches
//   - Weight throttling
//   - Partial history after an unavailable page
//   - Cache errors (fetch continues uncached)
//
// Error: walk aborted
//   - Access denied, region blocked, unhandled status
//
// Context Fields:
//   - component: kline-client, kline-pagination, kline-cache, kline-ratelimit, endpoint-resolver
//   - symbol, interval: request identity
//   - attempt: 1-based attempt index within one page
//   - endpoint: primary or fallback
//   - status: HTTP status (0 when no response arrived)
//   - error_class: network, rate_limit, server, access_denied, region_blocked, unhandled, decode
//   - state: retry state after the attempt
//   - backoff: wait before the next attempt
//   - page, records: walk progress

// Package logging configures the process-wide slog logger. Components
// take an optional *slog.Logger in their Config; this package supplies
// the default used when none is given.
package logging

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(build("info", false))
}

// InitFromEnv configures the default logger from
// DRUID_SUPERVISOR_LOG_LEVEL (debug|info|warn|error) and
// DRUID_SUPERVISOR_LOG_JSON (bool). Unset or invalid values keep the
// defaults (info, text).
func InitFromEnv() {
	asJSON, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("DRUID_SUPERVISOR_LOG_JSON")))
	Configure(os.Getenv("DRUID_SUPERVISOR_LOG_LEVEL"), asJSON)
}

// Configure replaces the default logger.
func Configure(level string, asJSON bool) {
	current.Store(build(level, asJSON))
}

// L returns the current default logger.
func L() *slog.Logger {
	return current.Load()
}

func build(level string, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

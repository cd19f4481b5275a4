// Package logging installs the process-wide structured logger and
// scrubs credentials from log attributes before they are emitted.
package logging

import (
	"log/slog"
	"os"

	"proxyllm-hq/relay/pkg/config"
)

// Setup builds a slog handler from cfg and installs it as the default
// logger. verbose forces debug level regardless of the configured one.
func Setup(cfg config.LoggingConfig, verbose bool) {
	level := ParseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a configured level string onto a slog level. Unknown
// values fall back to info.
func ParseLevel(s string) slog.Level {
	switch s {
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

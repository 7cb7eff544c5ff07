// Package observability wires structured logging for the backplane. Every
// component takes an optional *slog.Logger and falls back to slog.Default;
// this package builds the root logger the embedder hands out. No global
// state is installed unless the embedder asks for it.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// Options configures the root logger.
type Options struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string
	// JSON selects the JSON handler; text otherwise.
	JSON bool
	// Service is attached to every record.
	Service string
}

// ParseLevel maps a level name onto slog's scale, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the root logger.
func NewLogger(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	return logger
}

// Component derives a component-scoped logger, the way every backplane
// package labels its records.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

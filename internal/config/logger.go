package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type LoggerOptions struct {
	Level string
	// Path is the log file. Empty logs to stderr.
	Path      string
	Component string
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logLevel backs the default logger's level so SetLevel can change it
// after SetupLogger.
var logLevel slog.LevelVar

// SetLevel changes the level of the logger installed by SetupLogger.
func SetLevel(level string) {
	logLevel.Set(ParseLevel(level))
}

// SetupLogger installs the default slog logger. The returned closer is
// non-nil when a log file was opened.
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	logLevel.Set(ParseLevel(opts.Level))
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &logLevel}))
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	return closer, nil
}

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/doorpoint/terminal-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the terminal's defaults: structured
// output, level filtering, and service/version fields on every line so
// fleet logs identify which firmware produced them.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml.
// Format "text" is for bench work on a serial console; anything else
// gets JSON for the log shipper. Output "stderr" or "stdout".
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	return &Logger{
		Logger: slog.New(handlerFor(output, cfg, version)),
	}
}

// handlerFor assembles the slog handler for a writer. Split from New
// so tests can capture output without redirecting the process streams.
func handlerFor(w io.Writer, cfg config.LoggingConfig, version string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return handler.WithAttrs([]slog.Attr{
		slog.String("service", "doorpoint"),
		slog.String("version", version),
	})
}

// parseLevel maps a config level string to slog.Level.
// Unrecognised values fall back to info rather than failing boot.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger carrying additional default attributes.
//
//	mqttLogger := logger.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default is the logger used before config.yaml has been read:
// JSON to stdout at info level, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

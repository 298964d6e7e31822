// Package logging builds the instance-scoped *slog.Logger every ragcore
// component takes as a constructor option: a human handler on a TTY, a
// JSON handler otherwise, selected via go-isatty rather than guessing
// at $TERM.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config controls handler selection and level.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Output is the destination; nil defaults to os.Stderr.
	Output io.Writer
	// Format forces "json" or "text"; empty auto-detects from Output via
	// isatty (text on a TTY, json otherwise).
	Format string
	// AddSource includes the calling file:line in each record.
	AddSource bool
}

// DefaultConfig returns the auto-detecting default: info level, stderr,
// format chosen by TTY detection.
func DefaultConfig() Config {
	return Config{Level: "info", Output: os.Stderr}
}

// New builds a *slog.Logger per cfg. It never mutates slog's package-level
// default; every ragcore component takes its logger as an explicit field.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}

	format := cfg.Format
	if format == "" {
		format = autoFormat(out)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// autoFormat picks "text" when out is a terminal file descriptor, "json"
// otherwise (redirected to a file, piped, or an unknown io.Writer).
func autoFormat(out io.Writer) string {
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return "text"
	}
	return "json"
}

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

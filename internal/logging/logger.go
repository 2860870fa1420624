package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Options struct {
	Level     string
	Writer    io.Writer
	Component string
}

func NewLogger(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	h := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	lg := slog.New(h)
	if strings.TrimSpace(opts.Component) != "" {
		lg = lg.With("component", strings.TrimSpace(opts.Component))
	}
	return lg
}

// NewFileLogger appends JSON logs to path. The TUI owns the terminal, so
// its logs go here instead of stderr.
func NewFileLogger(path string, opts Options) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	opts.Writer = f
	return NewLogger(opts), f, nil
}

func parseLevel(level string) slog.Level {
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

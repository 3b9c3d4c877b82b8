package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures the process logger.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // auto, text or json; auto picks text on a terminal
	File       string // optional rotated log file, always text
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger returns a text logger at the named level (debug, info, warn, error).
// Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// Setup builds the process logger writing to console and, when opts.File is
// set, to a size-rotated file. The returned closer releases the file.
func Setup(console *os.File, opts Options) (*slog.Logger, io.Closer, error) {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handlers []slog.Handler
	if consoleFormat(console, opts.Format) == FormatJSON {
		handlers = append(handlers, slog.NewJSONHandler(console, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(console, handlerOpts))
	}

	closer := io.Closer(nopCloser{})
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		handlers = append(handlers, slog.NewTextHandler(rotated, handlerOpts))
		closer = rotated
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(&fanout{handlers: handlers}), closer, nil
}

func consoleFormat(f *os.File, format string) string {
	switch strings.ToLower(format) {
	case FormatText:
		return FormatText
	case FormatJSON:
		return FormatJSON
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return FormatText
	}
	return FormatJSON
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout struct {
	handlers []slog.Handler
}

func (h *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanout) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (h *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanout{handlers: next}
}

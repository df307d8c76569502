// v1
// internal/logging/logging.go

// Package logging builds the slog logger shared by every component. Entries
// go to stdout and to a log file so they survive container restarts.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger couples the slog logger with the file it writes to.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Open creates the log directory if needed, opens path for appending and
// returns a logger writing to both console and file at level.
func Open(path string, console io.Writer, level slog.Level) (*Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{Logger: New(level, console, f), file: f}, nil
}

// Close closes the log file. The logger must not be used afterwards.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New fans out every entry to one text handler per writer.
func New(level slog.Level, writers ...io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, slog.NewTextHandler(w, opts))
	}
	return slog.New(&teeHandler{handlers: handlers})
}

type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		next = append(next, h.WithAttrs(attrs))
	}
	return &teeHandler{handlers: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		next = append(next, h.WithGroup(name))
	}
	return &teeHandler{handlers: next}
}

// Writer adapts the logger to an io.Writer, one entry per write, for
// libraries that log through io.Writer or *log.Logger.
func Writer(l *slog.Logger, level slog.Level, msg string) io.Writer {
	return lineWriter{l: l, level: level, msg: msg}
}

type lineWriter struct {
	l     *slog.Logger
	level slog.Level
	msg   string
}

func (w lineWriter) Write(p []byte) (int, error) {
	line := string(p)
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	w.l.Log(context.Background(), w.level, w.msg, slog.String("line", line))
	return len(p), nil
}

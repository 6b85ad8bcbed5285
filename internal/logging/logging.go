// Package logging builds the slog handlers crewgen logs through: a colored
// console handler and an optional JSON run log.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// NewConsole returns a tint handler writing to w. Colors are disabled unless
// w is a terminal.
func NewConsole(w io.Writer, level slog.Leveler) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
}

// RunLog is a JSON log file kept for the duration of a run.
type RunLog struct {
	slog.Handler
	f *os.File
}

// OpenRunLog opens path for appending, creating parent directories.
func OpenRunLog(path string, level slog.Leveler) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: failed to open run log: %w", err)
	}
	return &RunLog{
		Handler: slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}),
		f:       f,
	}, nil
}

func (l *RunLog) Close() error {
	return l.f.Close()
}

// Fanout sends every record to all handlers enabled for its level.
type Fanout []slog.Handler

func (h Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(Fanout, len(h))
	for i, handler := range h {
		out[i] = handler.WithAttrs(attrs)
	}
	return out
}

func (h Fanout) WithGroup(name string) slog.Handler {
	out := make(Fanout, len(h))
	for i, handler := range h {
		out[i] = handler.WithGroup(name)
	}
	return out
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

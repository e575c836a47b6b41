// Package logger configures slog for the linker and carries per-run
// attributes through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type contextKey struct{}

type run struct {
	id      string
	command string
}

// New builds a logger writing text or JSON records to w. Unknown levels fall
// back to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs New(w, level, format) as the default logger.
func Setup(w io.Writer, level, format string) *slog.Logger {
	l := New(w, level, format)
	slog.SetDefault(l)
	return l
}

// ParseLevel accepts slog level names in any case, with optional offsets
// such as "debug+2".
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithRun tags ctx with a run ID and the command being executed.
func WithRun(ctx context.Context, id, command string) context.Context {
	return context.WithValue(ctx, contextKey{}, run{id: id, command: command})
}

// FromContext returns the default logger with the run attributes of ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if r, ok := ctx.Value(contextKey{}).(run); ok {
		l = l.With("run_id", r.id, "command", r.command)
	}
	return l
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

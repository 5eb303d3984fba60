package logging

import (
	"context"
	"io"
	"os"
)

// Logger is the structured logging interface used across the core
type Logger interface {
	Debug(component, msg string, fields ...any)
	Info(component, msg string, fields ...any)
	Warn(component, msg string, fields ...any)
	Error(component, msg string, fields ...any)
	Event(ctx context.Context, event string, fields map[string]any)
	Close() error
}

type loggerKey struct{}

// WithLogger stores a logger in the context
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From retrieves the context logger, or a noop
func From(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return &noopLogger{}
}

// Noop returns a logger that discards everything
func Noop() Logger {
	return &noopLogger{}
}

// NewLogger builds a logger from config. Only the jsonl format emits;
// pretty output goes through the CLI directly, not the logger.
func NewLogger(cfg Config) (Logger, error) {
	var w io.Writer
	var closer io.Closer

	if cfg.Output == "" || cfg.Output == "stderr" {
		w = os.Stderr
	} else {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f
	}

	if cfg.Format == "jsonl" {
		return &jsonlLogger{
			writer:   w,
			closer:   closer,
			minLevel: levelPriority(cfg.Level),
		}, nil
	}

	return &noopLogger{closer: closer}, nil
}

type noopLogger struct {
	closer io.Closer
}

func (n *noopLogger) Debug(component, msg string, fields ...any) {}
func (n *noopLogger) Info(component, msg string, fields ...any)  {}
func (n *noopLogger) Warn(component, msg string, fields ...any)  {}
func (n *noopLogger) Error(component, msg string, fields ...any) {}
func (n *noopLogger) Event(ctx context.Context, event string, fields map[string]any) {
}
func (n *noopLogger) Close() error {
	if n.closer != nil {
		return n.closer.Close()
	}
	return nil
}

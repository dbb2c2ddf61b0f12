package logger

import (
	"context"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	scanIDKey
)

// WithRequestID stores the request id for later FromContext calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithScanID stores the scan id being processed.
func WithScanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scanIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextLogger adds context support
type ContextLogger interface {
	Logger
	FromContext(ctx context.Context) Logger
}

type contextLogger struct {
	Logger
}

func NewContextLogger(l Logger) ContextLogger {
	return &contextLogger{Logger: l}
}

// FromContext returns a logger carrying the request and scan ids found in ctx.
func (l *contextLogger) FromContext(ctx context.Context) Logger {
	fields := make([]Field, 0, 2)
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, String("requestId", id))
	}
	if id, ok := ctx.Value(scanIDKey).(string); ok && id != "" {
		fields = append(fields, ScanID(id))
	}
	if len(fields) == 0 {
		return l.Logger
	}
	return l.With(fields...)
}

package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// NewTraceID generates a fresh request trace identifier.
func NewTraceID() string { return uuid.NewString() }

// WithTraceID stores a trace ID on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored on the context, if any.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// LogRequest emits the standard access-log line for a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithField("method", method).
		WithField("path", path).
		WithField("status", status).
		WithField("duration_ms", duration.Milliseconds())
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Info("request handled")
}

package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ctxKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or one over slog.Default when none was stored.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// HTTPCompleted writes the access log line for a finished request.
func HTTPCompleted(ctx context.Context, l *Logger, r *http.Request, status int, took time.Duration, clientIP string) {
	l.Logger.LogAttrs(ctx, levelForStatus(status), "HTTP request completed",
		slog.String(FieldComponent, ComponentHTTP),
		slog.String(FieldMethod, r.Method),
		slog.String(FieldPath, r.URL.Path),
		slog.String(FieldQuery, r.URL.RawQuery),
		slog.Int(FieldStatusCode, status),
		slog.Int64(FieldDuration, took.Milliseconds()),
		slog.String(FieldClientIP, clientIP),
		slog.String(FieldUserAgent, r.UserAgent()),
	)
}

package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

// WithContext stores a request- or session-scoped logger.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the stored logger, or the default one, tagged with the
// active trace id when there is one.
func FromContext(ctx context.Context) *slog.Logger {
	log, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok || log == nil {
		log = slog.Default()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		log = log.With(TraceID(sc.TraceID().String()))
	}
	return log
}

package middleware

import (
	"log/slog"
	"net/http"
	"qrdine/pkg/logging"
	"time"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger logs each request and injects a request-scoped logger. The
// request id is taken from X-Request-ID when present and echoed back.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)
			// child logger with request details
			reqLog := log.With(
				logging.RequestID(reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			ctx := logging.WithContext(r.Context(), reqLog)
			logging.FromContext(ctx).Debug("request started")

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			logging.FromContext(ctx).Info("request finished", "status", wrapped.statusCode, "duration_ms", time.Since(start).Milliseconds())
		})
	}
}

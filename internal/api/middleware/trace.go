package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
)

// TraceIDHeader carries the request's trace ID back to the client.
const TraceIDHeader = "X-Trace-ID"

// TraceMiddleware adds a trace ID to the request context, a logger carrying
// it, and the X-Trace-ID response header. It should run before any middleware that logs.
func TraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)
			w.Header().Set(TraceIDHeader, traceID)
			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/phrazzld/coursehub-api/internal/service/auth"
)

// ContextKey is the type of request context keys set by the API.
type ContextKey string

// Context keys for various values
const (
	// CallerContextKey holds the *auth.Claims of the authenticated caller
	CallerContextKey ContextKey = "caller"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// WithCaller stores the authenticated caller in ctx.
func WithCaller(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, CallerContextKey, claims)
}

// GetCaller returns the authenticated caller, if any.
func GetCaller(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(CallerContextKey).(*auth.Claims)
	if !ok || claims == nil || claims.UserID <= 0 {
		return nil, false
	}
	return claims, true
}

// SetTraceID adds a trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID creates a random 32-character hex trace ID. If crypto/rand
// fails it falls back to a time-based ID, never a static value.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)
	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

func generateFallbackTraceID() string {
	fallbackID := make([]byte, TraceIDLength)
	now := time.Now()
	binary.BigEndian.PutUint64(fallbackID[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(fallbackID[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(fallbackID[12:16], uint32(now.Unix()))
	return hex.EncodeToString(fallbackID)
}

package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/service/auth"
)

// AuthMiddleware provides bearer token authentication for routes.
type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate validates the bearer token in the Authorization header and
// stores the caller's claims in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || scheme != "Bearer" || token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Token expired", err)
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrTokenNotYetValid),
				errors.Is(err, auth.ErrInvalidRole),
				errors.Is(err, auth.ErrMissingToken):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token", err,
					shared.WithElevatedLogLevel())
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		ctx := shared.WithCaller(r.Context(), claims)
		log := logger.FromContextOrDefault(ctx, slog.Default()).With(slog.Int64("caller_id", claims.UserID))
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers without the ADMIN role. It must run after
// Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := shared.GetCaller(r.Context())
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !claims.IsAdmin() {
			shared.RespondWithError(w, r, http.StatusForbidden, "Administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/coursehub-api/internal/config"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
)

// Role is the caller's authorization level.
type Role string

// Known roles
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Claims is what the API needs to know about an authenticated caller.
type Claims struct {
	// UserID is the identifier of the user the token was issued for.
	UserID int64 `json:"uid"`

	Role Role `json:"role"`

	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// IsAdmin reports whether the caller may process other users' enrollments.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	// VerifyToken validates tokenString and extracts its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, ErrInvalidRole or
	// ErrInvalidToken when validation fails.
	VerifyToken(ctx context.Context, tokenString string) (*Claims, error)
}

// TokenClaims is the JWT payload shape shared with the token issuer.
type TokenClaims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// hmacVerifier is an implementation of TokenVerifier for HMAC-SHA256 tokens.
type hmacVerifier struct {
	signingKey []byte
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration    // Allowed time difference for validation to handle clock drift
}

// Ensure hmacVerifier implements TokenVerifier interface
var _ TokenVerifier = (*hmacVerifier)(nil)

// NewTokenVerifier creates a verifier for tokens signed with cfg.JWTSecret.
func NewTokenVerifier(cfg config.AuthConfig) (TokenVerifier, error) {
	return newHMACVerifier(cfg.JWTSecret, time.Now)
}

func newHMACVerifier(secret string, now func() time.Time) (*hmacVerifier, error) {
	// Validate that the secret meets minimum length requirements
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &hmacVerifier{
		signingKey: []byte(secret),
		timeFunc:   now,
		clockSkew:  2 * time.Minute,
	}, nil
}

// VerifyToken implements TokenVerifier.
func (v *hmacVerifier) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return nil, ErrMissingToken
	}

	now := v.timeFunc()
	token, err := jwt.ParseWithClaims(
		tokenString,
		&TokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: token expired")
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("token validation failed: token not yet valid")
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed",
				slog.String("error", err.Error()),
				slog.String("error_type", fmt.Sprintf("%T", err)))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		log.Debug("token validation failed: invalid claims")
		return nil, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		// Older issuers only set the subject.
		if userID, err = strconv.ParseInt(claims.Subject, 10, 64); err != nil {
			return nil, ErrInvalidToken
		}
	}
	if userID <= 0 {
		return nil, ErrInvalidToken
	}

	role := Role(claims.Role)
	if role == "" {
		role = RoleUser
	}
	if !role.IsValid() {
		log.Debug("token validation failed: unknown role", slog.String("role", claims.Role))
		return nil, ErrInvalidRole
	}

	out := &Claims{UserID: userID, Role: role, ID: claims.ID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/analyticshub/gatekeeper/internal/models"
	pkghttp "github.com/analyticshub/gatekeeper/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

// AuthMiddleware validates bearer tokens and injects user claims into context
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			// Refresh tokens are only good for the refresh flow, not API access
			if claims.Type != "access" {
				pkghttp.WriteUnauthorized(w, "invalid token type")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access control. Role is re-read from the
// user store so revoked admins lose access without waiting for token expiry.
func RequireRole(userRepo UserFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if user.Role != role || user.Status != "active" {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserFetcher defines the interface for loading users during authorization
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// GetUserFromContext extracts token claims placed by AuthMiddleware.
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, _ := r.Context().Value(UserContextKey).(*models.TokenClaims)
	return claims
}

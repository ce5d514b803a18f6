package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/neuroflux/backend/internal/models"
)

// Context keys for authentication
type contextKey string

const (
	// ClaimsContextKey is the context key for the validated JWT claims
	ClaimsContextKey contextKey = "claims"
)

// UserLookup resolves a user ID to the current user record. The middleware
// re-fetches the user on admin routes so a stale token can never carry an
// elevated role past a demotion.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Middleware holds dependencies for the authentication middleware
type Middleware struct {
	jwtService *JWTService
	users      UserLookup
}

// NewMiddleware creates the authentication middleware
func NewMiddleware(jwtService *JWTService, users UserLookup) *Middleware {
	return &Middleware{jwtService: jwtService, users: users}
}

// Authenticate validates the bearer token and stores the claims in context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.validate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin authenticates and additionally checks the user's current role
// against the directory, not just the role baked into the token.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.validate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.UserID)
		if err != nil || user.Role != models.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"error":   "forbidden",
				"message": "Administrator access required",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validate extracts and validates the bearer token from a request
func (m *Middleware) validate(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrInvalidToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrInvalidToken
	}

	return m.jwtService.Validate(parts[1])
}

// GetClaims returns the validated claims from context
func GetClaims(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetUserID returns the authenticated user ID from context
func GetUserID(ctx context.Context) string {
	claims := GetClaims(ctx)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// writeAuthError writes an authentication error response
func writeAuthError(w http.ResponseWriter, err error) {
	message := "Authentication required"
	switch err {
	case ErrExpiredToken:
		message = "Token has expired"
	case ErrInvalidToken:
		message = "Invalid authentication token"
	}

	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"error":   "unauthorized",
		"message": message,
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/landchat/internal/auth"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// AuthMiddleware verifies bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	verifier *auth.Verifier
	logger   zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware. A nil verifier disables
// verification, which is only allowed outside production.
func NewAuthMiddleware(verifier *auth.Verifier, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's claims in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, err := auth.BearerToken(r)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Debug().
				Err(err).
				Str("type", "security").
				Str("path", r.URL.Path).
				Msg("rejected bearer token")
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClaimsFromContext retrieves the verified token claims, or nil when the
// request was not authenticated.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

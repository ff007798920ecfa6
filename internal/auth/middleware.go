package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can read or write the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// RequireScope enforces that the request carries a valid token with the
// given scope. The token is read from the Authorization bearer header or,
// failing that, the "token" cookie. On failure the chain stops with 401.
func RequireScope(tokens *TokenService, scope Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil || id.Scope != scope {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the validated identity from the request
// context. ok is false on requests that skipped the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Subject != ""
}

func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return tokens.Validate(strings.TrimPrefix(h, "Bearer "))
	}

	cookie, err := r.Cookie("token")
	if err != nil {
		return Identity{}, err
	}
	return tokens.Validate(cookie.Value)
}

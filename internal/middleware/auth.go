package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/auth"
)

type ctxUserKey struct{}

// Verifier checks an access token and returns its claims.
type Verifier interface {
	Verify(token, kind string) (*auth.Claims, error)
}

// BearerToken reads the access token from the Authorization header, falling
// back to the token query parameter used by websocket clients.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return r.URL.Query().Get("token")
}

// RequireUser rejects requests without a valid access token and injects the
// token's user id into the request context.
func RequireUser(v Verifier, onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				onError(w, apperr.Unauthorized("authentication credentials were not provided"))
				return
			}
			claims, err := v.Verify(tok, auth.TokenAccess)
			if err != nil {
				onError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id or empty string.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserKey{}).(string); ok {
		return v
	}
	return ""
}

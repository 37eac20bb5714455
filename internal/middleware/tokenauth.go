// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/atinyakov/ClassFeed/internal/auth"
)

type ctxKey string

const (
	userKey   ctxKey = "user"
	expiryKey ctxKey = "token_expiry"
)

// TokenParser verifies access tokens.
type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// TokenAuth is a middleware that requires a valid access token.
//
// The token is read from the "Authorization: Bearer" header, falling back to
// the access_token query parameter for websocket clients that cannot set
// headers. On success the student id from the token is stored in the request
// context and is the only owner id downstream handlers may use. The token's
// expiry is stored alongside it for long-lived streams.
func TokenAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "no access token provided", http.StatusUnauthorized)
				return
			}
			claims, err := parser.ParseToken(token)
			if err != nil {
				http.Error(w, "invalid access token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, claims.StudentID)
			if claims.ExpiresAt != nil {
				ctx = context.WithValue(ctx, expiryKey, claims.ExpiresAt.Time)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// GetUserIDFromContext extracts the authenticated student id from the
// request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUserID returns a copy of ctx carrying studentID, for handler tests.
func WithUserID(ctx context.Context, studentID string) context.Context {
	return context.WithValue(ctx, userKey, studentID)
}

// GetTokenExpiryFromContext returns the expiry of the access token that
// authenticated the request, if it has one.
func GetTokenExpiryFromContext(ctx context.Context) (time.Time, bool) {
	exp, ok := ctx.Value(expiryKey).(time.Time)
	return exp, ok
}

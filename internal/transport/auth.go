package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// UserResolver maps an API key to the user that owns it.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}

// BearerToken extracts the credential of an "Authorization: Bearer" header.
// Any other scheme yields "".
func BearerToken(h http.Header) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate resolves the user behind token. Every failure wraps
// ErrUnauthorized.
func Authenticate(ctx context.Context, resolver UserResolver, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	userID, err := resolver.ResolveUser(ctx, token)
	if err != nil || userID == "" {
		return "", fmt.Errorf("%w: invalid bearer token", ErrUnauthorized)
	}
	return userID, nil
}

// AuthMiddleware guards the plain HTTP routes. MCP calls are authenticated
// per request by the MCP server, which shares Authenticate.
func AuthMiddleware(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := Authenticate(r.Context(), resolver, BearerToken(r.Header))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="attemptlog"`)
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type testResolver struct {
	tokenToUser map[string]string
	err         error
}

func (r *testResolver) ResolveUser(_ context.Context, token string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	user, ok := r.tokenToUser[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return user, nil
}

func TestAuthMiddleware(t *testing.T) {
	resolver := &testResolver{tokenToUser: map[string]string{"token": "u1"}}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "u1", userID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	resolver := &testResolver{err: errors.New("invalid")}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Bearer realm="attemptlog"`, rec.Header().Get("WWW-Authenticate"))
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := AuthMiddleware(&testResolver{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		h := http.Header{}
		h.Set("Authorization", tt.header)
		require.Equal(t, tt.want, BearerToken(h), "header %q", tt.header)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	resolver := &testResolver{tokenToUser: map[string]string{"tok-a": "user-a", "blank": ""}}

	userID, err := Authenticate(ctx, resolver, "tok-a")
	require.NoError(t, err)
	require.Equal(t, "user-a", userID)

	for _, token := range []string{"", "unknown", "blank"} {
		_, err := Authenticate(ctx, resolver, token)
		require.ErrorIs(t, err, ErrUnauthorized, "token %q", token)
	}
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	require.False(t, ok)

	_, ok = UserFromContext(WithUser(context.Background(), ""))
	require.False(t, ok)

	userID, ok := UserFromContext(WithUser(context.Background(), "u1"))
	require.True(t, ok)
	require.Equal(t, "u1", userID)
}

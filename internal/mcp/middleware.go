package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/attemptlog/internal/transport"
)

type contextKey int

const (
	userIDKey contextKey = iota
)

// getUserID extracts the user ID from context.
func getUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// UserResolver resolves a user ID from a bearer token.
type UserResolver = transport.UserResolver

// authMiddleware authenticates every non-protocol request from the bearer
// token of the underlying HTTP request.
func authMiddleware(resolver UserResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", transport.ErrUnauthorized)
			}

			userID, err := transport.Authenticate(ctx, resolver, transport.BearerToken(extra.Header))
			if err != nil {
				return nil, err
			}

			ctx = context.WithValue(ctx, userIDKey, userID)
			return next(ctx, method, req)
		}
	}
}

// noAuthMiddleware injects a default user when auth is disabled.
func noAuthMiddleware(defaultUser string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, userIDKey, defaultUser)
			return next(ctx, method, req)
		}
	}
}

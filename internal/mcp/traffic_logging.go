package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// trafficLoggingMiddleware logs every request and response at debug level.
// Tool call arguments and results are included verbatim.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			log := logger.With(
				"direction", direction,
				"method", method,
				"session_id", safeSessionID(req),
				"user_id", getUserID(ctx),
			)
			log.Debug("mcp traffic", "stage", "request", "params", formatPayload(safeParams(req)))

			started := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs := []any{"stage", "response", "elapsed", time.Since(started), "result", formatPayload(result)}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			log.Debug("mcp traffic", attrs...)

			return result, err
		}
	}
}

// The SDK's request types panic on some nil receivers, e.g. params of the
// "initialized" notification.
func safeSessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func safeParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	return string(data)
}

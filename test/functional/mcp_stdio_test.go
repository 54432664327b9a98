package functional_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// stdioSession wraps an MCP client session talking to the built binary.
type stdioSession struct {
	session *sdkmcp.ClientSession
}

func findBinary(t *testing.T) string {
	t.Helper()
	for _, path := range []string{"./bin/attemptlog", "../../bin/attemptlog"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("Server binary not found. Run 'make build' first.")
	return ""
}

func newStdioSession(t *testing.T, extraEnv ...string) *stdioSession {
	t.Helper()

	binaryPath := findBinary(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(os.Environ(),
		"ATTEMPTS_TRANSPORT_MODE=stdio",
		"ATTEMPTS_DB_PATH=:memory:",
		"ATTEMPTS_AUTH_ENABLED=false",
		"ATTEMPTS_TIME_ZONE=UTC",
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		cancel()
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
	})

	return &stdioSession{session: session}
}

func (s *stdioSession) call(t *testing.T, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	return result
}

func (s *stdioSession) callTool(t *testing.T, name string, args map[string]any) json.RawMessage {
	t.Helper()

	result := s.call(t, name, args)
	require.False(t, result.IsError, "Tool %s returned error: %s", name, text(result))
	out := text(result)
	require.NotEmpty(t, out, "Tool %s returned no text content", name)
	return json.RawMessage(out)
}

func text(result *sdkmcp.CallToolResult) string {
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			return textContent.Text
		}
	}
	return ""
}

type attemptView struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	IsActive       bool   `json:"is_active"`
	Ordinal        int    `json:"ordinal"`
	UserID         string `json:"user_id"`
	Duration       int64  `json:"duration"`
	PausedDuration int64  `json:"paused_duration"`
	PointsEarned   int    `json:"points_earned"`
}

func decodeAttempt(t *testing.T, raw json.RawMessage) attemptView {
	t.Helper()
	var resp struct {
		Attempt attemptView `json:"attempt"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp.Attempt
}

func TestStdioFunctional_TimerWorkflow(t *testing.T) {
	s := newStdioSession(t, "ATTEMPTS_DEFAULT_USER=stdio-user")

	s.callTool(t, "create_template", map[string]any{"id": "essay", "kind": "task", "title": "Essay draft"})

	a := decodeAttempt(t, s.callTool(t, "create_attempt", map[string]any{"entity_id": "essay"}))
	require.True(t, a.IsActive)
	require.Equal(t, "stdio-user", a.UserID)

	s.callTool(t, "start_attempt", map[string]any{"attempt_id": a.ID})
	s.callTool(t, "pause_attempt", map[string]any{"attempt_id": a.ID})
	s.callTool(t, "resume_attempt", map[string]any{"attempt_id": a.ID})

	active := s.callTool(t, "get_active_attempt", nil)
	require.Equal(t, a.ID, decodeAttempt(t, active).ID)

	done := decodeAttempt(t, s.callTool(t, "complete_attempt", map[string]any{"attempt_id": a.ID, "points_awarded": 4}))
	require.Equal(t, "COMPLETED", done.Status)
	require.False(t, done.IsActive)
	require.Equal(t, 4, done.PointsEarned)

	retried := decodeAttempt(t, s.callTool(t, "undo_or_retry_attempt", map[string]any{
		"from_attempt_id": a.ID,
		"kind":            "retry",
	}))
	require.Equal(t, 2, retried.Ordinal)
	require.True(t, retried.IsActive)

	var byDate struct {
		Attempts []struct {
			Attempt attemptView `json:"attempt"`
			Events  []struct {
				Type string `json:"type"`
			} `json:"events"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(s.callTool(t, "get_attempts_by_date", nil), &byDate))
	require.Len(t, byDate.Attempts, 2)
}

func TestStdioFunctional_ErrorsAreToolResults(t *testing.T) {
	s := newStdioSession(t)

	result := s.call(t, "create_attempt", map[string]any{"entity_id": "missing"})
	require.True(t, result.IsError)
	require.Contains(t, text(result), "UNKNOWN_ENTITY")

	s.callTool(t, "create_template", map[string]any{"id": "drill", "kind": "routine", "title": "Scales"})
	s.callTool(t, "create_attempt", map[string]any{"entity_id": "drill"})

	result = s.call(t, "create_attempt", map[string]any{"entity_id": "drill"})
	require.True(t, result.IsError)
	require.Contains(t, text(result), "ACTIVE_ATTEMPT_EXISTS")

	result = s.call(t, "manual_log", map[string]any{
		"entity_id":          "drill",
		"duration_seconds":   600,
		"productive_seconds": 500,
	})
	require.True(t, result.IsError)
	require.Contains(t, text(result), "INCONSISTENT_DURATIONS")
}

func TestStdioFunctional_ManualLog(t *testing.T) {
	s := newStdioSession(t)

	s.callTool(t, "create_template", map[string]any{"id": "reading", "kind": "task", "title": "Reading"})
	logged := decodeAttempt(t, s.callTool(t, "manual_log", map[string]any{
		"entity_id":          "reading",
		"duration_seconds":   1800,
		"productive_seconds": 1500,
		"paused_seconds":     300,
		"points":             2,
	}))
	require.Equal(t, "COMPLETED", logged.Status)
	require.False(t, logged.IsActive)
	require.Equal(t, int64(1_500_000), logged.Duration)
	require.Equal(t, int64(300_000), logged.PausedDuration)
	require.Equal(t, 2, logged.PointsEarned)

	// A manual log never holds the active slot.
	a := decodeAttempt(t, s.callTool(t, "create_attempt", map[string]any{"entity_id": "reading"}))
	require.Equal(t, 2, a.Ordinal)
}

package integration_test

import (
	"context"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

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

// TestStdioProtocolCompliance drives the built server over stdio with the
// SDK client.
func TestStdioProtocolCompliance(t *testing.T) {
	binaryPath := findBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(os.Environ(),
		"ATTEMPTS_TRANSPORT_MODE=stdio",
		"ATTEMPTS_DB_PATH=:memory:",
	)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	require.NoError(t, err, "Failed to connect to server")
	defer session.Close()

	t.Run("ServerInfo", func(t *testing.T) {
		initResult := session.InitializeResult()
		require.NotNil(t, initResult)
		require.NotNil(t, initResult.ServerInfo)
		require.Equal(t, "attemptlog", initResult.ServerInfo.Name)
		require.Equal(t, "0.1.0", initResult.ServerInfo.Version)
		require.NotEmpty(t, initResult.Instructions)
	})

	t.Run("ListTools", func(t *testing.T) {
		tools, err := session.ListTools(ctx, nil)
		require.NoError(t, err, "tools/list failed")

		toolNames := make(map[string]bool)
		for _, tool := range tools.Tools {
			toolNames[tool.Name] = true
			require.NotNil(t, tool.InputSchema, "tool %s has no input schema", tool.Name)
		}
		for _, name := range []string{
			"create_template",
			"create_attempt",
			"start_attempt",
			"complete_attempt",
			"apply_events",
			"get_attempts_by_date",
		} {
			require.True(t, toolNames[name], "Missing expected tool: %s", name)
		}
	})

	t.Run("ReadDocs", func(t *testing.T) {
		res, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "attemptlog://docs/index"})
		require.NoError(t, err)
		require.NotEmpty(t, res.Contents)
	})

	t.Run("CallStudyDay", func(t *testing.T) {
		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name:      "get_study_day",
			Arguments: map[string]any{},
		})
		require.NoError(t, err)
		require.False(t, result.IsError)
		require.NotEmpty(t, result.Content)
	})
}

// TestStdioProtocol_StdoutHygiene checks that nothing but JSON-RPC reaches
// stdout; logs belong on stderr.
func TestStdioProtocol_StdoutHygiene(t *testing.T) {
	binaryPath := findBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(os.Environ(),
		"ATTEMPTS_TRANSPORT_MODE=stdio",
		"ATTEMPTS_DB_PATH=:memory:",
		"ATTEMPTS_LOG_LEVEL=debug",
	)

	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	initReq := `{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}},"id":1}`
	_, err = stdin.Write([]byte(initReq + "\n"))
	require.NoError(t, err)

	done := make(chan struct{})
	var stdoutBytes, stderrBytes []byte
	go func() {
		stdoutBytes, _ = readWithTimeout(stdout, 2*time.Second)
		stderrBytes, _ = readWithTimeout(stderr, 2*time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("Timeout waiting for server response")
	}

	_ = stdin.Close()
	_ = cmd.Process.Kill()
	_ = cmd.Wait()

	require.NotEmpty(t, stdoutBytes, "Server produced no stdout output")
	require.Equal(t, byte('{'), stdoutBytes[0], "stdout should start with JSON, got: %q", string(stdoutBytes[:min(50, len(stdoutBytes))]))
	t.Logf("Stderr output (logs): %s", string(stderrBytes))
}

func readWithTimeout(r io.Reader, timeout time.Duration) ([]byte, error) {
	result := make([]byte, 0, 4096)
	buf := make([]byte, 1024)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done := make(chan struct{})
		var n int
		var err error
		go func() {
			n, err = r.Read(buf)
			close(done)
		}()

		select {
		case <-done:
			if n > 0 {
				result = append(result, buf[:n]...)
			}
			if err != nil {
				return result, err
			}
		case <-time.After(100 * time.Millisecond):
			if len(result) > 0 {
				return result, nil
			}
		}
	}
	return result, nil
}

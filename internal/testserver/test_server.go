package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
	"github.com/rpggio/attemptlog/internal/mcp"
	"github.com/rpggio/attemptlog/internal/metrics"
	"github.com/rpggio/attemptlog/internal/sqlite"
	"github.com/rpggio/attemptlog/internal/studyday"
	"github.com/rpggio/attemptlog/internal/transport"
	"github.com/stretchr/testify/require"
)

// DefaultUserID is the user injected when auth is disabled.
const DefaultUserID = "local"

// Clock is a settable clock shared by the services and the MCP tools.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// syncBuffer guards a log buffer written by the server and read by tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type TestServer struct {
	DB       *sqlite.DB
	Server   *sdkmcp.Server
	Session  *sdkmcp.ClientSession
	Clock    *Clock
	Registry *prometheus.Registry
	APIKeys  *sqlite.APIKeyRepository

	logs *syncBuffer
}

// Start is the instant the test clock starts at: midday of study day 2024-03-10 in UTC.
var Start = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type options struct {
	auth bool
}

// New builds the full stack on an in-memory database and connects an MCP
// client to it over in-memory transports.
func New(t *testing.T) *TestServer {
	t.Helper()

	ts := build(t, options{})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	ctx := context.Background()
	serverSession, err := ts.Server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	ts.Session, err = client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = ts.Session.Close()
		_ = serverSession.Wait()
	})

	return ts
}

// HTTPServer is a TestServer reachable over streamable HTTP with bearer auth.
type HTTPServer struct {
	*TestServer
	HTTP *httptest.Server
}

// NewHTTP serves the stack over HTTP with auth enabled and registers token for userID.
func NewHTTP(t *testing.T, token, userID string) *HTTPServer {
	t.Helper()

	ts := build(t, options{auth: true})
	require.NoError(t, ts.APIKeys.Create(context.Background(), token, userID, "test"))

	server := httptest.NewServer(transport.NewRouter(ts.Server, transport.RouterOptions{
		Gatherer: ts.Registry,
		Resolver: ts.APIKeys,
	}))
	t.Cleanup(server.Close)

	return &HTTPServer{TestServer: ts, HTTP: server}
}

// Connect opens an MCP client session that sends token on every request.
func (s *HTTPServer) Connect(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()

	httpClient := &http.Client{Transport: &bearerTransport{token: token, base: http.DefaultTransport}}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   s.HTTP.URL + "/mcp",
		HTTPClient: httpClient,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}

func build(t *testing.T, opts options) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	days, err := studyday.New(time.UTC, studyday.DefaultStartHour)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	recorder, err := metrics.New(registry)
	require.NoError(t, err)

	clock := &Clock{now: Start}
	templateRepo := sqlite.NewTemplateRepository(db)
	attemptRepo := sqlite.NewAttemptRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	templateSvc := template.NewService(templateRepo, logger)
	attemptSvc := attempt.NewService(attemptRepo, templateRepo, days, logger,
		attempt.WithClock(clock),
		attempt.WithObserver(recorder),
	)

	mode := "stdio"
	if opts.auth {
		mode = "http"
	}
	server := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Templates: templateSvc,
			Attempts:  attemptSvc,
			Days:      days,
		},
		Resolver:      apiKeys,
		AuthEnabled:   opts.auth,
		TransportMode: mode,
		DefaultUserID: DefaultUserID,
		Logger:        logger,
		Now:           clock.Now,
	})

	return &TestServer{
		DB:       db,
		Server:   server,
		Clock:    clock,
		Registry: registry,
		APIKeys:  apiKeys,
		logs:     logs,
	}
}

// Logs returns everything logged so far.
func (ts *TestServer) Logs() string {
	return ts.logs.String()
}

// CallTool calls a tool that must succeed and returns its JSON text content.
func (ts *TestServer) CallTool(t *testing.T, name string, args map[string]any) json.RawMessage {
	t.Helper()
	return CallTool(t, ts.Session, name, args)
}

// CallToolError calls a tool that must fail and returns the error text.
func (ts *TestServer) CallToolError(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	return CallToolError(t, ts.Session, name, args)
}

// CallTool calls a tool on session that must succeed.
func CallTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) json.RawMessage {
	t.Helper()

	result := callTool(t, session, name, args)
	require.False(t, result.IsError, "tool %s returned error: %s", name, textContent(result))
	text := textContent(result)
	require.NotEmpty(t, text, "tool %s returned no text content", name)
	return json.RawMessage(text)
}

// CallToolError calls a tool on session that must report a tool error.
func CallToolError(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()

	result := callTool(t, session, name, args)
	require.True(t, result.IsError, "tool %s unexpectedly succeeded", name)
	return textContent(result)
}

func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()

	if args == nil {
		args = map[string]any{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	return result
}

func textContent(result *sdkmcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

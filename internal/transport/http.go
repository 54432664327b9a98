package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rpggio/attemptlog/internal/metrics"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	// Gatherer enables /metrics when set.
	Gatherer prometheus.Gatherer
	// Resolver protects /metrics with bearer tokens when set.
	Resolver UserResolver
	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string
	SessionTimeout time.Duration
}

// NewRouter serves the MCP server over streamable HTTP at /mcp alongside
// /health and, optionally, /metrics.
func NewRouter(server *sdkmcp.Server, opts RouterOptions) *chi.Mux {
	if opts.SessionTimeout == 0 {
		opts.SessionTimeout = 30 * time.Minute
	}

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: opts.SessionTimeout,
		},
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version", "Last-Event-ID"},
			ExposedHeaders: []string{"Mcp-Session-Id"},
		}))
	}

	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)
	r.Get("/health", handleHealth)

	if opts.Gatherer != nil {
		metricsRoute := r.With()
		if opts.Resolver != nil {
			metricsRoute = r.With(AuthMiddleware(opts.Resolver))
		}
		metricsRoute.Method(http.MethodGet, "/metrics", metrics.Handler(opts.Gatherer))
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
)

// TemplateService defines template operations needed by MCP.
type TemplateService interface {
	Create(ctx context.Context, req template.CreateRequest) (*template.Template, error)
	List(ctx context.Context, userID string, opts template.ListOptions) ([]template.Template, error)
}

// AttemptService defines attempt operations needed by MCP. Every call is made
// on behalf of the user resolved by the identity middleware.
type AttemptService interface {
	CreateAttempt(ctx context.Context, req attempt.CreateRequest) (*attempt.Attempt, error)
	StartAttempt(ctx context.Context, userID, id string) (*attempt.Attempt, error)
	PauseAttempt(ctx context.Context, userID, id string) (*attempt.Attempt, error)
	ResumeAttempt(ctx context.Context, userID, id string) (*attempt.Attempt, error)
	CompleteAttempt(ctx context.Context, userID, id string, payload attempt.CompletePayload) (*attempt.Attempt, error)
	StopAttempt(ctx context.Context, userID, id, reason string) (*attempt.Attempt, error)
	NormalUndoOrRetry(ctx context.Context, req attempt.RetryRequest) (*attempt.Attempt, error)
	ManualLog(ctx context.Context, req attempt.ManualLogRequest) (*attempt.Attempt, error)
	HardUndo(ctx context.Context, userID, id string) (*attempt.Attempt, error)
	ApplyEvents(ctx context.Context, userID, id string, events []attempt.Event) error
	GetAttempt(ctx context.Context, userID, id string) (*attempt.Attempt, error)
	GetActiveAttempt(ctx context.Context, userID string) (*attempt.Attempt, error)
	ListEvents(ctx context.Context, userID, id string) ([]attempt.Event, error)
	GetHydratedAttemptsByDate(ctx context.Context, userID, date string) ([]attempt.HydratedAttempt, error)
}

// StudyDays reports which study day an instant falls on.
type StudyDays interface {
	Bucket(t time.Time) string
	Start(t time.Time) time.Time
	SinceStart(t time.Time) time.Duration
	Range(key string) (time.Time, time.Time, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Templates TemplateService
	Attempts  AttemptService
	Days      StudyDays
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      UserResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	DefaultUserID string
	Logger        *slog.Logger
	Now           func() time.Time
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "local"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "attemptlog",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio mode is local only, so auth never applies there.
	identify := noAuthMiddleware(cfg.DefaultUserID)
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		identify = authMiddleware(cfg.Resolver)
	}
	// The first middleware is outermost, so traffic logs carry the user.
	server.AddReceivingMiddleware(identify, trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Now)

	return server
}

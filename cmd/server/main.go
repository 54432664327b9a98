package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rpggio/attemptlog/internal/config"
	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
	"github.com/rpggio/attemptlog/internal/mcp"
	"github.com/rpggio/attemptlog/internal/metrics"
	"github.com/rpggio/attemptlog/internal/sqlite"
	"github.com/rpggio/attemptlog/internal/studyday"
	"github.com/rpggio/attemptlog/internal/transport"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logWriter, closeLog := newLogWriter(cfg)
	defer closeLog()
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("preparing database path: %w", err)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return err
	}

	days, err := studyday.Load(cfg.StudyDay.TimeZone, cfg.StudyDay.DayStartHour)
	if err != nil {
		return fmt.Errorf("configuring study day: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	templateRepo := sqlite.NewTemplateRepository(db)
	attemptRepo := sqlite.NewAttemptRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	templateSvc := template.NewService(templateRepo, logger)
	attemptSvc := attempt.NewService(attemptRepo, templateRepo, days, logger,
		attempt.WithObserver(recorder),
	)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Templates: templateSvc,
			Attempts:  attemptSvc,
			Days:      days,
		},
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		DefaultUserID: cfg.User.DefaultID,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Transport.Mode == config.TransportStdio {
		return runStdioMode(ctx, logger, mcpServer)
	}

	var resolver transport.UserResolver
	if cfg.Auth.Enabled {
		resolver = apiKeys
	}
	router := transport.NewRouter(mcpServer, transport.RouterOptions{
		Gatherer:       registry,
		Resolver:       resolver,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return runHTTPMode(ctx, logger, router, cfg.Server.Host, cfg.Server.Port)
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is cancelled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, handler http.Handler, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLogWriter picks the log destination. Stdio mode keeps stdout clean for
// JSON-RPC; a configured path gets a rotating file instead.
func newLogWriter(cfg config.Config) (io.Writer, func()) {
	if cfg.Log.Path == "" {
		if cfg.Transport.Mode == config.TransportStdio {
			return os.Stderr, func() {}
		}
		return os.Stdout, func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Log.Path,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	return rotator, func() { _ = rotator.Close() }
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

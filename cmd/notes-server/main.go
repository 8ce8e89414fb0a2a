package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/markdown-notes/internal/auth"
	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/notes"
	"github.com/tjfontaine/markdown-notes/internal/orchestrator"
	"github.com/tjfontaine/markdown-notes/internal/provider"
	"github.com/tjfontaine/markdown-notes/internal/registration"
	"github.com/tjfontaine/markdown-notes/internal/server"
	"github.com/tjfontaine/markdown-notes/internal/storage/sqlite"
	"github.com/tjfontaine/markdown-notes/internal/telemetry"
	"github.com/tjfontaine/markdown-notes/internal/tokens"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer(server.ServiceName, nil, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if dir := filepath.Dir(cfg.Storage.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}
	store, err := sqlite.New(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register built-in provider factories
	registration.RegisterBuiltins()

	providers, err := provider.BuildProviders(ctx, cfg.AI, provider.Options{
		HTTPClient: &http.Client{Timeout: cfg.AI.CandidateTimeout + 5*time.Second},
		Counter:    tokens.NewDefaultRegistry(),
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create providers: %v", err)
	}
	if len(providers) == 0 {
		logger.Warn("no AI providers configured; AI endpoints will return 503")
	}

	recorder := telemetry.NewStoreRecorder(store, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := recorder.Close(closeCtx); err != nil {
			logger.Error("failed to flush usage logs", slog.String("error", err.Error()))
		}
	}()

	ai := orchestrator.New(providers,
		orchestrator.WithPriority(cfg.AI.PriorityOrder()),
		orchestrator.WithCandidateTimeout(cfg.AI.CandidateTimeout),
		orchestrator.WithRecorder(recorder),
		orchestrator.WithLogger(logger),
	)

	srv := server.New(server.Deps{
		Auth:  auth.NewService(store, cfg.Auth.JWTSecret, auth.WithTokenTTL(cfg.Auth.TokenTTL)),
		Notes: notes.NewService(store),
		AI:    ai,
		Usage: store,
	}, server.Options{
		Port:              cfg.Server.Port,
		RequestTimeout:    cfg.Server.RequestTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerSecond: cfg.AI.RateLimit.RequestsPerSecond,
		Burst:             cfg.AI.RateLimit.Burst,
	}, logger)

	registered := make([]string, 0, len(providers))
	for _, p := range ai.AvailableProviders() {
		registered = append(registered, string(p.ID))
	}
	logger.Info("markdown notes server configured",
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Storage.SQLite.Path),
		slog.String("providers", strings.Join(registered, ",")),
		slog.Int("operations", len(domain.Operations)),
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

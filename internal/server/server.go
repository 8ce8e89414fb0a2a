package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/markdown-notes/internal/auth"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/notes"
	"github.com/tjfontaine/markdown-notes/internal/orchestrator"
	"github.com/tjfontaine/markdown-notes/internal/storage"
)

// ServiceName is reported by GET / and used as the otelhttp operation.
const ServiceName = "markdown-notes"

// AIService is the orchestrator surface the handlers use.
type AIService interface {
	Run(ctx context.Context, req domain.FallbackRequest) (*domain.FallbackResult, error)
	Health(ctx context.Context) orchestrator.HealthReport
	AvailableProviders() []orchestrator.ProviderInfo
	TokenUsage() domain.Usage
	ResetTokenUsage()
}

// Deps are the services the routes delegate to.
type Deps struct {
	Auth  *auth.Service
	Notes *notes.Service
	AI    AIService
	Usage storage.UsageStore
}

// Options tune the HTTP surface.
type Options struct {
	Port              int
	RequestTimeout    time.Duration
	AllowedOrigins    []string
	RequestsPerSecond float64
	Burst             int
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	deps   Deps
	http   *http.Server
}

func New(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, ServiceName)
	})

	s := &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
		deps:   deps,
	}
	s.routes(NewUserRateLimiter(opts.RequestsPerSecond, opts.Burst))
	return s
}

func (s *Server) routes(limiter *UserRateLimiter) {
	r := s.Router

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.deps.Auth))

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleCreateNote)
			r.Get("/{noteID}", s.handleGetNote)
			r.Get("/{noteID}/html", s.handleNoteHTML)
			r.Put("/{noteID}", s.handleUpdateNote)
			r.Delete("/{noteID}", s.handleDeleteNote)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Get("/health", s.handleAIHealth)
			r.Get("/providers", s.handleAIProviders)
			r.Get("/usage", s.handleAIUsage)
			r.Post("/usage/reset", s.handleAIUsageReset)
			r.With(limiter.Middleware).Post("/{operation}", s.handleAIOperation)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": ServiceName,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

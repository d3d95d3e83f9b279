package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/surveykong/surveykong/internal/auth"
	"github.com/surveykong/surveykong/internal/orchestrator"
	"github.com/surveykong/surveykong/internal/ratelimit"
)

// ServerConfig bundles the dependencies for New.
type ServerConfig struct {
	Store      Store
	Orch       *orchestrator.Orchestrator
	Agents     orchestrator.Agents
	JWTManager *auth.JWTManager
	// APIKeyHash is the argon2id hash of the service API key. Empty
	// disables authentication.
	APIKeyHash string
	// Limiter throttles the token-exchange and generation endpoints per
	// client IP. Nil disables throttling.
	Limiter ratelimit.Limiter
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	Logger       *slog.Logger
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
	MaxBodyBytes int64
	CORSOrigin   string
}

// Server is the HTTP server for the SurveyKong API.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// New builds the server: handlers, routes, and the middleware chain.
func New(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := NewHandlers(HandlersDeps{
		Store:        cfg.Store,
		Orch:         cfg.Orch,
		Agents:       cfg.Agents,
		JWTManager:   cfg.JWTManager,
		APIKeyHash:   cfg.APIKeyHash,
		Logger:       logger,
		Version:      cfg.Version,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	limit := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	})

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("POST /auth/token", limit(http.HandlerFunc(h.HandleAuthToken)))

	// Generation endpoints invoke the LLM, so they share the IP rate limit.
	mux.Handle("POST /api/survey", limit(http.HandlerFunc(h.HandleCreateSurveySpec)))
	mux.Handle("POST /api/survey/update", limit(http.HandlerFunc(h.HandleUpdateSurveySpec)))
	mux.Handle("POST /api/survey/questions", limit(http.HandlerFunc(h.HandleCreateSurvey)))
	mux.Handle("POST /api/survey/questions/update", limit(http.HandlerFunc(h.HandleUpdateSurvey)))
	mux.Handle("POST /api/cohort/criteria", limit(http.HandlerFunc(h.HandleCreateCohort)))
	mux.Handle("POST /api/cohort/criteria/update", limit(http.HandlerFunc(h.HandleUpdateCohort)))
	mux.Handle("POST /api/workflow", limit(http.HandlerFunc(h.HandleRunWorkflow)))

	mux.HandleFunc("POST /api/projects", h.HandleCreateProject)
	mux.HandleFunc("GET /api/projects", h.HandleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", h.HandleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.HandleDeleteProject)
	mux.Handle("POST /api/projects/{id}/spec", limit(http.HandlerFunc(h.HandleRunProjectSpec)))
	mux.HandleFunc("GET /api/projects/{id}/status", h.HandleProjectStatus)

	mux.HandleFunc("POST /api/survey-specs", h.HandleCreateSpecRecord)
	mux.HandleFunc("GET /api/survey-specs", h.HandleListSpecRecords)
	mux.HandleFunc("GET /api/survey-specs/{id}", h.HandleGetSpecRecord)
	mux.HandleFunc("PUT /api/survey-specs/{id}", h.HandleUpdateSpecRecord)
	mux.HandleFunc("DELETE /api/survey-specs/{id}", h.HandleDeleteSpecRecord)

	if cfg.MCP != nil {
		mux.Handle("/mcp", cfg.MCP)
		mux.Handle("/mcp/", cfg.MCP)
	}

	// Middleware chain, outermost first: request ID, CORS, tracing,
	// logging, auth, recovery.
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger, handler)
	handler = authMiddleware(cfg.JWTManager, h.authEnabled(), handler)
	handler = loggingMiddleware(logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigin, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  logger.With("component", "server"),
	}
}

// Handler returns the fully wrapped root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

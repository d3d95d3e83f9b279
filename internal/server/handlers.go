package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/surveykong/surveykong/internal/auth"
	"github.com/surveykong/surveykong/internal/model"
	"github.com/surveykong/surveykong/internal/orchestrator"
)

// Store is the persistence surface the HTTP layer needs. It extends the
// orchestrator's store with the survey-spec record operations and a
// liveness probe. *storage.DB satisfies it.
type Store interface {
	orchestrator.Store

	CountProjects(ctx context.Context) (int, error)

	GetSurveySpec(ctx context.Context, id uuid.UUID) (*model.StageArtifact, error)
	UpdateSurveySpec(ctx context.Context, id uuid.UUID, payload any) (*model.StageArtifact, error)
	DeleteSurveySpec(ctx context.Context, id uuid.UUID) error
	ListSurveySpecs(ctx context.Context, projectID *uuid.UUID, limit, offset int) ([]model.StageArtifact, error)

	Ping(ctx context.Context) error
}

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	store        Store
	orch         *orchestrator.Orchestrator
	agents       orchestrator.Agents
	jwtMgr       *auth.JWTManager
	apiKeyHash   string
	logger       *slog.Logger
	startedAt    time.Time
	version      string
	maxBodyBytes int64
}

// HandlersDeps bundles the constructor arguments for NewHandlers.
type HandlersDeps struct {
	Store      Store
	Orch       *orchestrator.Orchestrator
	Agents     orchestrator.Agents
	JWTManager *auth.JWTManager
	// APIKeyHash is the argon2id hash of the service API key. Empty
	// disables authentication entirely.
	APIKeyHash   string
	Logger       *slog.Logger
	Version      string
	MaxBodyBytes int64
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handlers{
		store:        deps.Store,
		orch:         deps.Orch,
		agents:       deps.Agents,
		jwtMgr:       deps.JWTManager,
		apiKeyHash:   deps.APIKeyHash,
		logger:       logger.With("component", "http"),
		startedAt:    time.Now(),
		version:      deps.Version,
		maxBodyBytes: maxBody,
	}
}

func (h *Handlers) authEnabled() bool { return h.apiKeyHash != "" }

// HandleHealth reports service and database liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			dbStatus = "unavailable"
		}
	}
	writeJSON(w, r, status, map[string]any{
		"status":         overall,
		"database":       dbStatus,
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// HandleAuthToken exchanges the service API key for a short-lived JWT.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	if !h.authEnabled() {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "authentication is not enabled")
		return
	}

	var req model.AuthTokenRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "api_key is required")
		return
	}

	ok, err := auth.VerifyAPIKey(req.APIKey, h.apiKeyHash)
	if err != nil || !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid api key")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken("service")
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to issue token")
		return
	}

	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: expiresAt})
}

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/surveykong/surveykong/internal/model"
	"github.com/surveykong/surveykong/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue(name))
}

func parseListParams(r *http.Request) (limit, offset int) {
	limit = defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// HandleCreateProject handles POST /api/projects.
func (h *Handlers) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req model.CreateProjectRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "name is required")
		return
	}

	project, err := h.orch.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("failed to create project", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to create project")
		return
	}
	writeJSON(w, r, http.StatusCreated, project)
}

// HandleListProjects handles GET /api/projects.
func (h *Handlers) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListParams(r)

	projects, err := h.store.ListProjects(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list projects", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list projects")
		return
	}
	total, err := h.store.CountProjects(r.Context())
	if err != nil {
		h.logger.Error("failed to count projects", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list projects")
		return
	}

	writeListJSON(w, r, projects, total, limit, offset)
}

// HandleGetProject handles GET /api/projects/{id}.
func (h *Handlers) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid project id")
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "error", err, "project_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to get project")
		return
	}
	writeJSON(w, r, http.StatusOK, project)
}

// HandleDeleteProject handles DELETE /api/projects/{id}.
func (h *Handlers) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid project id")
		return
	}

	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("failed to delete project", "error", err, "project_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRunProjectSpec handles POST /api/projects/{id}/spec, running the
// research-spec stage for an existing project.
func (h *Handlers) HandleRunProjectSpec(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid project id")
		return
	}

	var req model.CreateSurveySpecRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Question == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "question is required")
		return
	}
	if len(req.Question) > model.MaxResearchQuestionLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "question is too long")
		return
	}

	if _, err := h.store.GetProject(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "error", err, "project_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to get project")
		return
	}

	art, record, err := h.orch.RunResearchSpec(r.Context(), id, req.Question)
	if err != nil {
		h.logger.Error("research spec stage failed", "error", err, "project_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "research spec stage failed")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"artifact": art,
		"record":   record,
	})
}

// HandleProjectStatus handles GET /api/projects/{id}/status.
func (h *Handlers) HandleProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid project id")
		return
	}

	status, err := h.orch.GetProjectStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project status", "error", err, "project_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to get project status")
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// HandleRunWorkflow handles POST /api/workflow, executing the full pipeline
// from research question to analysis report.
func (h *Handlers) HandleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req model.RunWorkflowRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Question == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "question is required")
		return
	}
	if len(req.Question) > model.MaxResearchQuestionLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "question is too long")
		return
	}

	analysis, projectID, err := h.orch.OrchestrateFullWorkflow(r.Context(), req.Question, req.ProjectName, req.Description)
	if err != nil {
		h.logger.Error("full workflow failed", "error", err, "project_id", projectID)
		msg := "workflow failed"
		if projectID != uuid.Nil {
			msg = "workflow failed for project " + projectID.String()
		}
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"project_id": projectID,
		"analysis":   analysis,
	})
}

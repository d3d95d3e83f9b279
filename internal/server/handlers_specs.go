package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/surveykong/surveykong/internal/model"
	"github.com/surveykong/surveykong/internal/storage"
)

// HandleCreateSpecRecord handles POST /api/survey-specs, persisting a spec
// document directly without running the generation agent.
func (h *Handlers) HandleCreateSpecRecord(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSpecRecordRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.ProjectID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "project_id is required")
		return
	}
	if len(req.Data) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "data is required")
		return
	}

	if _, err := h.store.GetProject(r.Context(), req.ProjectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "error", err, "project_id", req.ProjectID)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to create survey spec")
		return
	}

	record, err := h.store.CreateSurveySpec(r.Context(), req.ProjectID, req.Data)
	if err != nil {
		h.logger.Error("failed to create survey spec", "error", err, "project_id", req.ProjectID)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to create survey spec")
		return
	}
	writeJSON(w, r, http.StatusCreated, record)
}

// HandleListSpecRecords handles GET /api/survey-specs. An optional
// project_id query parameter filters by project.
func (h *Handlers) HandleListSpecRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListParams(r)

	var projectID *uuid.UUID
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid project_id")
			return
		}
		projectID = &id
	}

	records, err := h.store.ListSurveySpecs(r.Context(), projectID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list survey specs", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list survey specs")
		return
	}

	// Listing does not run a separate count query; has_more is inferred
	// from a full page.
	total := offset + len(records)
	if len(records) == limit {
		total++
	}
	writeListJSON(w, r, records, total, limit, offset)
}

// HandleGetSpecRecord handles GET /api/survey-specs/{id}.
func (h *Handlers) HandleGetSpecRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid survey spec id")
		return
	}

	record, err := h.store.GetSurveySpec(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "survey spec not found")
			return
		}
		h.logger.Error("failed to get survey spec", "error", err, "spec_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to get survey spec")
		return
	}
	writeJSON(w, r, http.StatusOK, record)
}

// HandleUpdateSpecRecord handles PUT /api/survey-specs/{id}, replacing the
// stored document.
func (h *Handlers) HandleUpdateSpecRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid survey spec id")
		return
	}

	var req model.UpdateSpecRecordRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(req.Data) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "data is required")
		return
	}

	record, err := h.store.UpdateSurveySpec(r.Context(), id, req.Data)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "survey spec not found")
			return
		}
		h.logger.Error("failed to update survey spec", "error", err, "spec_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to update survey spec")
		return
	}
	writeJSON(w, r, http.StatusOK, record)
}

// HandleDeleteSpecRecord handles DELETE /api/survey-specs/{id}.
func (h *Handlers) HandleDeleteSpecRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid survey spec id")
		return
	}

	if err := h.store.DeleteSurveySpec(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "survey spec not found")
			return
		}
		h.logger.Error("failed to delete survey spec", "error", err, "spec_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to delete survey spec")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"net/http"

	"github.com/surveykong/surveykong/internal/model"
)

// The generation endpoints never surface LLM failures as HTTP errors: the
// agents return degraded fallback artifacts instead, and those are served
// with a 200 so the caller always receives a usable document. Only invalid
// input produces a 4xx here.

// HandleCreateSurveySpec handles POST /api/survey.
func (h *Handlers) HandleCreateSurveySpec(w http.ResponseWriter, r *http.Request) {
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

	art, err := h.agents.Spec.Generate(r.Context(), req.Question)
	if err != nil {
		h.logger.Error("spec generation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "spec generation failed")
		return
	}
	writeJSON(w, r, http.StatusOK, art)
}

// HandleUpdateSurveySpec handles POST /api/survey/update.
func (h *Handlers) HandleUpdateSurveySpec(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSurveySpecRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Changes == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "changes is required")
		return
	}
	if len(req.Changes) > model.MaxResearchQuestionLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "changes is too long")
		return
	}
	if req.SurveySpec.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "survey_spec is required")
		return
	}

	art, err := h.agents.Spec.Update(r.Context(), req.SurveySpec, req.Changes)
	if err != nil {
		h.logger.Error("spec update failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "spec update failed")
		return
	}
	writeJSON(w, r, http.StatusOK, art)
}

// HandleCreateSurvey handles POST /api/survey/questions.
func (h *Handlers) HandleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSurveyRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.SurveySpec.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "survey_spec is required")
		return
	}

	art, err := h.agents.Survey.Generate(r.Context(), req.SurveySpec, nil)
	if err != nil {
		h.logger.Error("survey generation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "survey generation failed")
		return
	}
	writeJSON(w, r, http.StatusOK, art)
}

// HandleUpdateSurvey handles POST /api/survey/questions/update.
func (h *Handlers) HandleUpdateSurvey(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSurveyRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Changes == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "changes is required")
		return
	}
	if req.SurveySpec.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "survey_spec is required")
		return
	}

	art, err := h.agents.Survey.Update(r.Context(), req.SurveySpec, req.Survey, req.Changes)
	if err != nil {
		h.logger.Error("survey update failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "survey update failed")
		return
	}
	writeJSON(w, r, http.StatusOK, art)
}

// HandleCreateCohort handles POST /api/cohort/criteria.
func (h *Handlers) HandleCreateCohort(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCohortRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.SurveySpec.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "survey_spec is required")
		return
	}

	art, err := h.agents.Cohort.Generate(r.Context(), req.SurveySpec)
	if err != nil {
		h.logger.Error("cohort generation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "cohort generation failed")
		return
	}
	writeJSON(w, r, http.StatusOK, art)
}

// HandleUpdateCohort handles POST /api/cohort/criteria/update.
func (h *Handlers) HandleUpdateCohort(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCohortRequest
	if err := decodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Changes == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "changes is required")
		return
	}
	if req.SurveySpec.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "survey_spec is required")
		return
	}

	art, err := h.agents.Cohort.Update(r.Context(), req.SurveySpec, req.Cohort, req.Changes)
	if err != nil {
		h.logger.Error("cohort update failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "cohort update failed")
		return
	}
	writeJSON(w, r, http.StatusOK, art)
}

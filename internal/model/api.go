package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxResearchQuestionLen bounds the free-text inputs that flow into LLM
// prompts, so a single oversized request cannot burn the token budget.
const MaxResearchQuestionLen = 8 * 1024

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// CreateSurveySpecRequest is the body for POST /api/survey.
type CreateSurveySpecRequest struct {
	Question string `json:"question"`
}

// UpdateSurveySpecRequest is the body for POST /api/survey/update.
type UpdateSurveySpecRequest struct {
	SurveySpec SurveySpec `json:"survey_spec"`
	Changes    string     `json:"changes"`
}

// CreateSurveyRequest is the body for POST /api/survey/questions.
type CreateSurveyRequest struct {
	SurveySpec SurveySpec `json:"survey_spec"`
}

// UpdateSurveyRequest is the body for POST /api/survey/questions/update.
type UpdateSurveyRequest struct {
	SurveySpec SurveySpec `json:"survey_spec"`
	Survey     Survey     `json:"survey"`
	Changes    string     `json:"changes"`
}

// CreateCohortRequest is the body for POST /api/cohort/criteria.
type CreateCohortRequest struct {
	SurveySpec SurveySpec `json:"survey_spec"`
}

// UpdateCohortRequest is the body for POST /api/cohort/criteria/update.
type UpdateCohortRequest struct {
	SurveySpec SurveySpec `json:"survey_spec"`
	Cohort     Cohort     `json:"cohort"`
	Changes    string     `json:"changes"`
}

// CreateSpecRecordRequest is the body for POST /api/survey-specs.
type CreateSpecRecordRequest struct {
	ProjectID uuid.UUID      `json:"project_id"`
	Data      map[string]any `json:"data"`
}

// UpdateSpecRecordRequest is the body for PUT /api/survey-specs/{id}.
type UpdateSpecRecordRequest struct {
	Data map[string]any `json:"data"`
}

// CreateProjectRequest is the body for POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RunWorkflowRequest is the body for POST /api/workflow.
type RunWorkflowRequest struct {
	Question    string `json:"question"`
	ProjectName string `json:"project_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// AuthTokenRequest is the body for POST /auth/token.
type AuthTokenRequest struct {
	APIKey string `json:"api_key"`
}

// AuthTokenResponse is the success payload for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProjectStatusResponse summarizes a project's workflow position.
type ProjectStatusResponse struct {
	ID            string        `json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	Status        string        `json:"status"`
	WorkflowStage WorkflowStage `json:"workflow_stage"`
	LastUpdated   string        `json:"last_updated,omitempty"`
	Error         string        `json:"error,omitempty"`
}

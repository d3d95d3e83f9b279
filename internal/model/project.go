package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStage names the furthest step a project's pipeline has reached.
// The orchestrator advances it after each successful stage.
type WorkflowStage string

const (
	StageSpec      WorkflowStage = "spec"
	StageSurvey    WorkflowStage = "survey"
	StageCohort    WorkflowStage = "cohort"
	StageOutbound  WorkflowStage = "outbound"
	StageAnalysis  WorkflowStage = "analysis"
	StageCompleted WorkflowStage = "completed"
)

// Project status values. Stage failures use "<stage>_failed"; a failure in
// the chained full workflow uses "workflow_failed".
const (
	StatusCreated = "created"
)

// Keys inside Project.Data. The payload is deliberately schemaless JSONB so
// stage transitions can merge individual fields without rewriting the row.
const (
	ProjectKeyName        = "name"
	ProjectKeyDescription = "description"
	ProjectKeyStatus      = "status"
	ProjectKeyStage       = "workflow_stage"
	ProjectKeyLastUpdated = "last_updated"
	ProjectKeyError       = "error"
)

// Project is a persisted survey project row.
type Project struct {
	ID        uuid.UUID      `json:"id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Status returns the project's status field, or "unknown".
func (p Project) Status() string { return p.dataString(ProjectKeyStatus) }

// Stage returns the project's workflow_stage field, or "unknown".
func (p Project) Stage() WorkflowStage { return WorkflowStage(p.dataString(ProjectKeyStage)) }

// LastUpdated returns the stage-completion marker, or "".
func (p Project) LastUpdated() string {
	if v, ok := p.Data[ProjectKeyLastUpdated].(string); ok {
		return v
	}
	return ""
}

// Err returns the recorded error text, or "".
func (p Project) Err() string {
	if v, ok := p.Data[ProjectKeyError].(string); ok {
		return v
	}
	return ""
}

func (p Project) dataString(key string) string {
	if v, ok := p.Data[key].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// StageArtifact is a persisted artifact row in one of the stage tables
// (survey_specs, surveys, cohorts, outbound_results, analysis_reports).
type StageArtifact struct {
	ID        uuid.UUID      `json:"id"`
	ProjectID *uuid.UUID     `json:"project_id,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

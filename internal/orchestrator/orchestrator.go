// Package orchestrator drives one project through the ordered survey
// pipeline: spec, survey, cohort, outbound, analysis. Each stage invokes its
// agent, persists the produced artifact into the stage's table, then
// advances the project's workflow_stage and last_updated marker. A stage
// failure records `<stage>_failed` plus the error on the project without
// touching workflow_stage, and returns the error to the caller.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surveykong/surveykong/internal/agent"
	"github.com/surveykong/surveykong/internal/model"
)

// Store is the persistence capability the orchestrator consumes. The
// production implementation is internal/storage; tests use an in-memory one.
type Store interface {
	CreateProject(ctx context.Context, data map[string]any) (*model.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// UpdateProject merges patch into the project's data payload; fields not
	// present in patch are left untouched.
	UpdateProject(ctx context.Context, id uuid.UUID, patch map[string]any) (*model.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	ListProjects(ctx context.Context, limit, offset int) ([]model.Project, error)

	CreateSurveySpec(ctx context.Context, projectID uuid.UUID, payload any) (*model.StageArtifact, error)
	// SaveArtifact stores payload in the artifact table for the given stage.
	SaveArtifact(ctx context.Context, stage model.WorkflowStage, projectID uuid.UUID, payload any) (*model.StageArtifact, error)
}

// Agents bundles the five stage agents the orchestrator chains.
type Agents struct {
	Spec     *agent.SpecAgent
	Survey   *agent.SurveyAgent
	Cohort   *agent.CohortAgent
	Outbound *agent.OutboundAgent
	Analysis *agent.AnalysisAgent
}

// Orchestrator is a long-lived, process-wide singleton shared by every
// request. The agents it holds carry shared circuit-breaker and rate-limit
// state, so concurrent workflows jointly protect the LLM dependency.
type Orchestrator struct {
	store  Store
	agents Agents
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(store Store, agents Agents, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:  store,
		agents: agents,
		logger: logger.With("component", "orchestrator"),
	}
}

// CreateProject creates a fresh project positioned at the spec stage.
func (o *Orchestrator) CreateProject(ctx context.Context, name, description string) (*model.Project, error) {
	p, err := o.store.CreateProject(ctx, map[string]any{
		model.ProjectKeyName:        name,
		model.ProjectKeyDescription: description,
		model.ProjectKeyStatus:      model.StatusCreated,
		model.ProjectKeyStage:       string(model.StageSpec),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create project: %w", err)
	}
	o.logger.Info("created project", "project_id", p.ID)
	return p, nil
}

// RunResearchSpec generates a survey specification for the research
// question, persists it, and advances the project to the survey stage. The
// returned StageArtifact is the persisted row; its ID links the spec to
// later stages.
func (o *Orchestrator) RunResearchSpec(ctx context.Context, projectID uuid.UUID, question string) (model.Artifact[model.SurveySpec], *model.StageArtifact, error) {
	art, err := o.agents.Spec.Generate(ctx, question)
	if err != nil {
		o.failStage(ctx, projectID, model.StageSpec, err)
		return art, nil, fmt.Errorf("orchestrator: research spec: %w", err)
	}

	rec, err := o.store.CreateSurveySpec(ctx, projectID, art)
	if err != nil {
		o.failStage(ctx, projectID, model.StageSpec, err)
		return art, nil, fmt.Errorf("orchestrator: persist spec: %w", err)
	}

	if err := o.advance(ctx, projectID, model.StageSurvey, "spec_completed"); err != nil {
		o.failStage(ctx, projectID, model.StageSpec, err)
		return art, rec, err
	}

	o.logger.Info("completed research spec", "project_id", projectID, "spec_id", rec.ID)
	return art, rec, nil
}

// RunSurveyCreation generates the questionnaire from the specification,
// persists it, and advances the project to the cohort stage. specID, when
// known, links the survey back to its spec row.
func (o *Orchestrator) RunSurveyCreation(ctx context.Context, projectID uuid.UUID, spec model.SurveySpec, specID *uuid.UUID) (model.Artifact[model.Survey], error) {
	art, err := o.agents.Survey.Generate(ctx, spec, specID)
	if err != nil {
		o.failStage(ctx, projectID, model.StageSurvey, err)
		return art, fmt.Errorf("orchestrator: survey creation: %w", err)
	}

	if _, err := o.store.SaveArtifact(ctx, model.StageSurvey, projectID, art); err != nil {
		o.failStage(ctx, projectID, model.StageSurvey, err)
		return art, fmt.Errorf("orchestrator: persist survey: %w", err)
	}

	if err := o.advance(ctx, projectID, model.StageCohort, "survey_completed"); err != nil {
		o.failStage(ctx, projectID, model.StageSurvey, err)
		return art, err
	}

	o.logger.Info("completed survey creation", "project_id", projectID)
	return art, nil
}

// RunCohortSelection generates the target cohort from the specification,
// persists it, and advances the project to the outbound stage.
func (o *Orchestrator) RunCohortSelection(ctx context.Context, projectID uuid.UUID, spec model.SurveySpec) (model.Artifact[model.Cohort], error) {
	art, err := o.agents.Cohort.Generate(ctx, spec)
	if err != nil {
		o.failStage(ctx, projectID, model.StageCohort, err)
		return art, fmt.Errorf("orchestrator: cohort selection: %w", err)
	}

	if _, err := o.store.SaveArtifact(ctx, model.StageCohort, projectID, art); err != nil {
		o.failStage(ctx, projectID, model.StageCohort, err)
		return art, fmt.Errorf("orchestrator: persist cohort: %w", err)
	}

	if err := o.advance(ctx, projectID, model.StageOutbound, "cohort_completed"); err != nil {
		o.failStage(ctx, projectID, model.StageCohort, err)
		return art, err
	}

	o.logger.Info("completed cohort selection", "project_id", projectID)
	return art, nil
}

// RunOutboundDistribution records the distribution stage and advances the
// project to analysis. Distribution itself happens outside this service, so
// the artifact is a placeholder.
func (o *Orchestrator) RunOutboundDistribution(ctx context.Context, projectID uuid.UUID, survey model.Survey, cohort model.Cohort) (model.Artifact[map[string]any], error) {
	art, err := o.agents.Outbound.Generate(ctx, survey, cohort)
	if err != nil {
		o.failStage(ctx, projectID, model.StageOutbound, err)
		return art, fmt.Errorf("orchestrator: outbound distribution: %w", err)
	}

	if _, err := o.store.SaveArtifact(ctx, model.StageOutbound, projectID, art); err != nil {
		o.failStage(ctx, projectID, model.StageOutbound, err)
		return art, fmt.Errorf("orchestrator: persist outbound results: %w", err)
	}

	if err := o.advance(ctx, projectID, model.StageAnalysis, "outbound_completed"); err != nil {
		o.failStage(ctx, projectID, model.StageOutbound, err)
		return art, err
	}

	o.logger.Info("completed outbound distribution", "project_id", projectID)
	return art, nil
}

// RunAnalysis records the analysis stage and marks the project completed.
func (o *Orchestrator) RunAnalysis(ctx context.Context, projectID uuid.UUID, outbound map[string]any) (model.Artifact[map[string]any], error) {
	art, err := o.agents.Analysis.Generate(ctx, outbound)
	if err != nil {
		o.failStage(ctx, projectID, model.StageAnalysis, err)
		return art, fmt.Errorf("orchestrator: analysis: %w", err)
	}

	if _, err := o.store.SaveArtifact(ctx, model.StageAnalysis, projectID, art); err != nil {
		o.failStage(ctx, projectID, model.StageAnalysis, err)
		return art, fmt.Errorf("orchestrator: persist analysis report: %w", err)
	}

	if err := o.advance(ctx, projectID, model.StageCompleted, "analysis_completed"); err != nil {
		o.failStage(ctx, projectID, model.StageAnalysis, err)
		return art, err
	}

	o.logger.Info("completed analysis", "project_id", projectID)
	return art, nil
}

// OrchestrateFullWorkflow runs the complete pipeline from research question
// to analysis report. A failure at any stage marks the project
// workflow_failed, preserves the originating error, and skips later stages.
// The returned project ID is uuid.Nil only when project creation itself
// failed.
func (o *Orchestrator) OrchestrateFullWorkflow(ctx context.Context, question, projectName, description string) (model.Artifact[map[string]any], uuid.UUID, error) {
	if projectName == "" {
		projectName = "Survey Project"
	}

	var none model.Artifact[map[string]any]

	project, err := o.CreateProject(ctx, projectName, description)
	if err != nil {
		return none, uuid.Nil, err
	}
	projectID := project.ID

	fail := func(err error) (model.Artifact[map[string]any], uuid.UUID, error) {
		o.markWorkflowFailed(ctx, projectID, err)
		return none, projectID, err
	}

	specArt, specRec, err := o.RunResearchSpec(ctx, projectID, question)
	if err != nil {
		return fail(err)
	}

	var specID *uuid.UUID
	if specRec != nil {
		specID = &specRec.ID
	}
	surveyArt, err := o.RunSurveyCreation(ctx, projectID, *specArt.Data, specID)
	if err != nil {
		return fail(err)
	}

	cohortArt, err := o.RunCohortSelection(ctx, projectID, *specArt.Data)
	if err != nil {
		return fail(err)
	}

	outboundArt, err := o.RunOutboundDistribution(ctx, projectID, *surveyArt.Data, *cohortArt.Data)
	if err != nil {
		return fail(err)
	}

	analysisArt, err := o.RunAnalysis(ctx, projectID, *outboundArt.Data)
	if err != nil {
		return fail(err)
	}

	o.logger.Info("completed full workflow", "project_id", projectID)
	return analysisArt, projectID, nil
}

// GetProjectStatus summarizes a project's workflow position.
func (o *Orchestrator) GetProjectStatus(ctx context.Context, projectID uuid.UUID) (*model.ProjectStatusResponse, error) {
	p, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: get project status: %w", err)
	}
	return &model.ProjectStatusResponse{
		ID:            p.ID.String(),
		CreatedAt:     p.CreatedAt,
		Status:        p.Status(),
		WorkflowStage: p.Stage(),
		LastUpdated:   p.LastUpdated(),
		Error:         p.Err(),
	}, nil
}

// advance moves the project's workflow_stage forward and stamps the
// completion marker of the stage that just finished.
func (o *Orchestrator) advance(ctx context.Context, projectID uuid.UUID, next model.WorkflowStage, marker string) error {
	_, err := o.store.UpdateProject(ctx, projectID, map[string]any{
		model.ProjectKeyStage:       string(next),
		model.ProjectKeyLastUpdated: marker,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: advance to %s: %w", next, err)
	}
	return nil
}

// failStage records a stage failure on the project. workflow_stage is left
// untouched so the failed stage can be retried from where it stopped. A
// failure of this bookkeeping write is logged, not propagated; the original
// stage error is what the caller needs to see.
func (o *Orchestrator) failStage(ctx context.Context, projectID uuid.UUID, stage model.WorkflowStage, cause error) {
	status := string(stage) + "_failed"
	o.logger.Error("stage failed", "project_id", projectID, "stage", stage, "error", cause)
	if _, err := o.store.UpdateProject(ctx, projectID, map[string]any{
		model.ProjectKeyStatus:      status,
		model.ProjectKeyError:       cause.Error(),
		model.ProjectKeyLastUpdated: status,
	}); err != nil {
		o.logger.Error("failed to record stage failure", "project_id", projectID, "error", err)
	}
}

func (o *Orchestrator) markWorkflowFailed(ctx context.Context, projectID uuid.UUID, cause error) {
	msg := fmt.Sprintf("Full workflow failed: %v", cause)
	if _, err := o.store.UpdateProject(ctx, projectID, map[string]any{
		model.ProjectKeyStatus:      "workflow_failed",
		model.ProjectKeyError:       msg,
		model.ProjectKeyLastUpdated: "workflow_failed",
	}); err != nil {
		o.logger.Error("failed to record workflow failure", "project_id", projectID, "error", err)
	}
}

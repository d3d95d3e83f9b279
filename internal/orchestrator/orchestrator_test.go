package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveykong/surveykong/internal/agent"
	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
	"github.com/surveykong/surveykong/internal/orchestrator"
)

// memStore is an in-memory orchestrator.Store with JSONB-style merge
// semantics and injectable failures.
type memStore struct {
	mu        sync.Mutex
	projects  map[uuid.UUID]*model.Project
	artifacts map[model.WorkflowStage][]*model.StageArtifact

	failCreateSpec   error
	failSaveArtifact error
}

func newMemStore() *memStore {
	return &memStore{
		projects:  make(map[uuid.UUID]*model.Project),
		artifacts: make(map[model.WorkflowStage][]*model.StageArtifact),
	}
}

func (s *memStore) CreateProject(_ context.Context, data map[string]any) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Project{ID: uuid.New(), Data: data, CreatedAt: time.Now().UTC()}
	s.projects[p.ID] = p
	return p, nil
}

func (s *memStore) GetProject(_ context.Context, id uuid.UUID) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, errors.New("storage: project not found")
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdateProject(_ context.Context, id uuid.UUID, patch map[string]any) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, errors.New("storage: project not found")
	}
	for k, v := range patch {
		p.Data[k] = v
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) DeleteProject(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

func (s *memStore) ListProjects(_ context.Context, _, _ int) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) CreateSurveySpec(_ context.Context, projectID uuid.UUID, _ any) (*model.StageArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateSpec != nil {
		return nil, s.failCreateSpec
	}
	rec := &model.StageArtifact{ID: uuid.New(), ProjectID: &projectID, CreatedAt: time.Now().UTC()}
	s.artifacts[model.StageSpec] = append(s.artifacts[model.StageSpec], rec)
	return rec, nil
}

func (s *memStore) SaveArtifact(_ context.Context, stage model.WorkflowStage, projectID uuid.UUID, _ any) (*model.StageArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveArtifact != nil {
		return nil, s.failSaveArtifact
	}
	rec := &model.StageArtifact{ID: uuid.New(), ProjectID: &projectID, CreatedAt: time.Now().UTC()}
	s.artifacts[stage] = append(s.artifacts[stage], rec)
	return rec, nil
}

const scriptedSpecJSON = `{
  "title": "Mobile App Customer Satisfaction Survey",
  "description": "Measures satisfaction with the mobile app.",
  "questions": [
    {"text": "How satisfied are you overall?", "type": "rating", "required": true}
  ],
  "target_audience": "Active mobile app users",
  "target_completion_time": "5 minutes",
  "required_responses": 200
}`

const scriptedSurveyJSON = `{
  "title": "Mobile App Satisfaction",
  "description": "Tell us about your experience.",
  "questions": [
    {"text": "How satisfied are you overall?", "type": "rating", "required": true},
    {"text": "What should we improve?", "type": "text", "required": false}
  ]
}`

const scriptedCohortJSON = `{
  "target_audience": "Active mobile app users",
  "inclusion_criteria": ["Opened the app in the last 30 days"],
  "exclusion_criteria": ["Internal employees"]
}`

func testAgents(client llm.Client) orchestrator.Agents {
	cfg := agent.Config{Client: client, MaxRetries: 2, RetryDelay: time.Millisecond}
	return orchestrator.Agents{
		Spec:     agent.NewSpecAgent(cfg),
		Survey:   agent.NewSurveyAgent(cfg),
		Cohort:   agent.NewCohortAgent(cfg),
		Outbound: agent.NewOutboundAgent(cfg),
		Analysis: agent.NewAnalysisAgent(cfg),
	}
}

func TestCreateProject(t *testing.T) {
	store := newMemStore()
	o := orchestrator.New(store, testAgents(llm.NewFake(scriptedSpecJSON)), nil)

	p, err := o.CreateProject(context.Background(), "Research A", "first study")
	require.NoError(t, err)

	got, err := store.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "created", got.Status())
	assert.Equal(t, model.StageSpec, got.Stage())
	assert.Equal(t, "Research A", got.Data[model.ProjectKeyName])
}

func TestRunResearchSpecAdvancesStage(t *testing.T) {
	store := newMemStore()
	o := orchestrator.New(store, testAgents(llm.NewFake(scriptedSpecJSON)), nil)

	p, err := o.CreateProject(context.Background(), "Research A", "")
	require.NoError(t, err)

	art, rec, err := o.RunResearchSpec(context.Background(), p.ID, "Create a customer satisfaction survey for a mobile app")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, art.Data)
	assert.Equal(t, "Mobile App Customer Satisfaction Survey", art.Data.Title)

	got, err := store.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageSurvey, got.Stage())
	assert.Equal(t, "spec_completed", got.LastUpdated())
	assert.Len(t, store.artifacts[model.StageSpec], 1)
}

func TestRunResearchSpecFailureMarksProject(t *testing.T) {
	store := newMemStore()
	store.failCreateSpec = errors.New("storage: create survey spec: connection refused")
	o := orchestrator.New(store, testAgents(llm.NewFake(scriptedSpecJSON)), nil)

	p, err := o.CreateProject(context.Background(), "Research A", "")
	require.NoError(t, err)

	_, _, err = o.RunResearchSpec(context.Background(), p.ID, "anything")
	require.Error(t, err)

	got, gerr := store.GetProject(context.Background(), p.ID)
	require.NoError(t, gerr)
	assert.Equal(t, "spec_failed", got.Status())
	assert.Contains(t, got.Err(), "connection refused")
	assert.Equal(t, model.StageSpec, got.Stage(), "a failed stage must not advance workflow_stage")
	assert.Equal(t, "spec_failed", got.LastUpdated())
}

func TestFullWorkflow(t *testing.T) {
	store := newMemStore()
	// One scripted pipeline: spec, then survey, then cohort. The placeholder
	// stages never call the model.
	fake := &llm.Fake{Responses: []llm.FakeResponse{
		{Content: scriptedSpecJSON},
		{Content: scriptedSurveyJSON},
		{Content: scriptedCohortJSON},
	}}
	o := orchestrator.New(store, testAgents(fake), nil)

	art, projectID, err := o.OrchestrateFullWorkflow(context.Background(),
		"Create a customer satisfaction survey for a mobile app", "", "")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, projectID)
	require.NotNil(t, art.Data)
	assert.Equal(t, "analysis_data", (*art.Data)["placeholder"])

	got, err := store.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, got.Stage())
	assert.Equal(t, "analysis_completed", got.LastUpdated())
	assert.Equal(t, "Survey Project", got.Data[model.ProjectKeyName])

	for _, stage := range []model.WorkflowStage{
		model.StageSpec, model.StageSurvey, model.StageCohort,
		model.StageOutbound, model.StageAnalysis,
	} {
		assert.Len(t, store.artifacts[stage], 1, "expected one artifact for stage %s", stage)
	}
	assert.Equal(t, 3, fake.Calls())
}

func TestFullWorkflowFailureStopsPipeline(t *testing.T) {
	store := newMemStore()
	store.failSaveArtifact = errors.New("storage: save artifact: disk full")
	fake := &llm.Fake{Responses: []llm.FakeResponse{
		{Content: scriptedSpecJSON},
		{Content: scriptedSurveyJSON},
	}}
	o := orchestrator.New(store, testAgents(fake), nil)

	_, projectID, err := o.OrchestrateFullWorkflow(context.Background(), "question", "P", "")
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, projectID)

	got, gerr := store.GetProject(context.Background(), projectID)
	require.NoError(t, gerr)
	assert.Equal(t, "workflow_failed", got.Status())
	assert.Contains(t, got.Err(), "Full workflow failed")
	// The spec stage persisted before the survey save failed; nothing past
	// the failing stage ran.
	assert.Len(t, store.artifacts[model.StageSpec], 1)
	assert.Empty(t, store.artifacts[model.StageCohort])
}

func TestGetProjectStatus(t *testing.T) {
	store := newMemStore()
	o := orchestrator.New(store, testAgents(llm.NewFake(scriptedSpecJSON)), nil)

	p, err := o.CreateProject(context.Background(), "Research A", "desc")
	require.NoError(t, err)

	st, err := o.GetProjectStatus(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), st.ID)
	assert.Equal(t, "created", st.Status)
	assert.Equal(t, model.StageSpec, st.WorkflowStage)
	assert.Empty(t, st.Error)

	_, err = o.GetProjectStatus(context.Background(), uuid.New())
	require.Error(t, err)
}

package agent_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveykong/surveykong/internal/agent"
	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
)

const satisfactionSpecJSON = `{
  "title": "Mobile App Customer Satisfaction Survey",
  "description": "Measures satisfaction with the mobile app across core flows.",
  "questions": [
    {"text": "How satisfied are you with the app overall?", "type": "rating", "required": true},
    {"text": "Which feature do you use most?", "type": "multiple_choice", "options": ["Search", "Checkout", "Account"], "required": true},
    {"text": "Would you recommend the app to a friend?", "type": "boolean", "required": true},
    {"text": "What should we improve first?", "type": "text", "required": false}
  ],
  "target_audience": "Active mobile app users",
  "target_completion_time": "5 minutes",
  "required_responses": 200,
  "hypotheses": ["Users who use checkout weekly report higher satisfaction"]
}`

func newSpecAgent(client llm.Client) *agent.SpecAgent {
	return agent.NewSpecAgent(agent.Config{
		Client:     client,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
}

func TestSpecAgentGenerate(t *testing.T) {
	fake := llm.NewFake(satisfactionSpecJSON)
	a := newSpecAgent(fake)

	art, err := a.Generate(context.Background(), "Create a customer satisfaction survey for a mobile app")
	require.NoError(t, err)
	require.NotNil(t, art.Data)

	assert.Equal(t, "Mobile App Customer Satisfaction Survey", art.Data.Title)
	assert.Len(t, art.Data.Questions, 4)
	assert.Equal(t, 200, art.Data.RequiredResponses)
	assert.Equal(t, model.ArtifactTypeSurveySpec, art.Metadata[model.MetaKeyType])
	assert.False(t, art.Degraded())

	// The user's research question must reach the model.
	require.NotEmpty(t, fake.Requests)
	last := fake.Requests[len(fake.Requests)-1]
	assert.True(t, last.JSONResponse)
	assert.Contains(t, last.Messages[len(last.Messages)-1].Content, "customer satisfaction survey")
}

func TestSpecAgentGenerateFallbackOnPersistentFailure(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.FakeResponse{{Err: transportErr("upstream 500")}}}
	a := newSpecAgent(fake)

	art, err := a.Generate(context.Background(), "anything")
	require.NoError(t, err, "generation must degrade, not fail")
	require.NotNil(t, art.Data)

	assert.Empty(t, art.Data.Questions)
	assert.Contains(t, art.Data.Title, "Temporarily Unavailable")
	assert.NotEmpty(t, art.Data.Description)
	assert.True(t, art.Degraded())
}

func TestSpecAgentGenerateCircuitOpenMessage(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.FakeResponse{{Err: transportErr("down")}}}
	cfg := agent.Config{
		Client:           fake,
		MaxRetries:       3,
		RetryDelay:       time.Millisecond,
		BreakerThreshold: 1,
	}
	a := agent.NewSpecAgent(cfg)

	art, err := a.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, art.Degraded())
	assert.Contains(t, art.Data.Description, "temporarily unavailable",
		"open circuit must surface the service-unavailable wording")
	assert.True(t, a.Breaker().Open())
}

func TestSpecAgentGenerateRecoversFromBadJSON(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.FakeResponse{
		{Content: "I'd be happy to help with that survey!"},
		{Content: "```json\n" + satisfactionSpecJSON + "\n```"},
	}}
	a := newSpecAgent(fake)

	art, err := a.Generate(context.Background(), "Create a customer satisfaction survey for a mobile app")
	require.NoError(t, err)
	assert.False(t, art.Degraded())
	assert.Equal(t, "Mobile App Customer Satisfaction Survey", art.Data.Title)
	assert.Equal(t, 2, fake.Calls())
	assert.False(t, a.Breaker().Open(), "malformed output is not a transport failure")
}

func TestSpecAgentUpdate(t *testing.T) {
	shorter := strings.Replace(satisfactionSpecJSON, `"required_responses": 200`, `"required_responses": 100`, 1)
	fake := llm.NewFake(shorter)
	a := newSpecAgent(fake)

	var current model.SurveySpec
	require.NoError(t, json.Unmarshal([]byte(satisfactionSpecJSON), &current))

	art, err := a.Update(context.Background(), current, "Make it shorter")
	require.NoError(t, err)
	assert.False(t, art.Degraded())
	assert.Equal(t, 100, art.Data.RequiredResponses)

	// The prompt must carry both the current spec and the feedback.
	last := fake.Requests[len(fake.Requests)-1]
	userMsg := last.Messages[len(last.Messages)-1].Content
	assert.Contains(t, userMsg, "Mobile App Customer Satisfaction Survey")
	assert.Contains(t, userMsg, "Make it shorter")
}

func TestSpecAgentUpdatePreservesCurrentOnFailure(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.FakeResponse{{Err: transportErr("down")}}}
	a := newSpecAgent(fake)

	current := model.SurveySpec{
		Title:       "Existing Spec",
		Description: "original description",
		Questions: []model.Question{
			{Text: "Q1", Type: model.QuestionText},
		},
		TargetAudience:    "Everyone",
		RequiredResponses: 50,
	}

	art, err := a.Update(context.Background(), current, "Make it shorter")
	require.NoError(t, err, "update must degrade, not fail")
	require.NotNil(t, art.Data)

	assert.Equal(t, "Existing Spec", art.Data.Title)
	assert.Len(t, art.Data.Questions, 1, "prior questions must survive a failed update")
	assert.Equal(t, 50, art.Data.RequiredResponses)
	assert.True(t, strings.HasPrefix(art.Data.Description, "UPDATE ERROR:"))
	assert.True(t, art.Degraded())
}

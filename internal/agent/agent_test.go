package agent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveykong/surveykong/internal/agent"
	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
)

func transportErr(msg string) error {
	return &llm.TransportError{Provider: "fake", Err: errors.New(msg)}
}

// fastConfig keeps retry sleeps negligible in tests.
func fastConfig(client llm.Client) agent.Config {
	return agent.Config{
		Name:       "test",
		Client:     client,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
}

func TestStructuredOutputParsesFencedJSON(t *testing.T) {
	fake := llm.NewFake("```json\n{\"text\":\"Rate us\",\"type\":\"rating\",\"required\":true}\n```")
	a := agent.New(fastConfig(fake))
	m := agent.NewMetrics()

	q, err := agent.StructuredOutput[model.Question](context.Background(), a, m, []llm.Message{
		{Role: llm.RoleUser, Content: "one question please"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rate us", q.Text)
	assert.Equal(t, model.QuestionRating, q.Type)
	assert.Equal(t, 1, m.APICalls())
}

func TestStructuredOutputSchemaErrorDoesNotTripBreaker(t *testing.T) {
	fake := llm.NewFake(`{"text":"x","type":"dropdown"}`) // invalid question type
	cfg := fastConfig(fake)
	cfg.BreakerThreshold = 1
	a := agent.New(cfg)
	m := agent.NewMetrics()

	_, err := agent.StructuredOutput[model.Question](context.Background(), a, m, []llm.Message{
		{Role: llm.RoleUser, Content: "q"},
	})

	var se *agent.SchemaError
	require.ErrorAs(t, err, &se)
	assert.False(t, a.Breaker().Open(), "schema failure must not trip the breaker")
	assert.Equal(t, 1, m.ErrorCount())
}

func TestCompleteTransportErrorTripsBreaker(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.FakeResponse{{Err: transportErr("down")}}}
	cfg := fastConfig(fake)
	cfg.MaxRetries = 1
	cfg.BreakerThreshold = 2
	a := agent.New(cfg)

	for i := 0; i < 2; i++ {
		_, err := a.Complete(context.Background(), agent.NewMetrics(), []llm.Message{{Role: llm.RoleUser, Content: "x"}}, false)
		require.Error(t, err)
	}
	assert.True(t, a.Breaker().Open(), "expected breaker open after threshold transport failures")

	// Open breaker fails fast without reaching the client.
	before := fake.Calls()
	_, err := a.Complete(context.Background(), agent.NewMetrics(), []llm.Message{{Role: llm.RoleUser, Content: "x"}}, false)
	require.ErrorIs(t, err, agent.ErrCircuitOpen)
	assert.Equal(t, before, fake.Calls(), "circuit-open must not call the provider")
}

func TestCompleteRetriesTransportFailures(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.FakeResponse{
		{Err: transportErr("blip")},
		{Err: transportErr("blip")},
		{Content: "ok", Usage: llm.Usage{PromptTokens: 3, CompletionTokens: 2}},
	}}
	a := agent.New(fastConfig(fake))
	m := agent.NewMetrics()

	resp, err := a.Complete(context.Background(), m, []llm.Message{{Role: llm.RoleUser, Content: "x"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, fake.Calls())
	assert.Equal(t, 3, m.APICalls())
	assert.Equal(t, 5, m.TokensUsed())
	assert.Equal(t, 2, m.ErrorCount())
}

func TestRunAttachesMetricsToArtifact(t *testing.T) {
	a := agent.New(fastConfig(llm.NewFake("unused")))

	art, err := agent.Run(context.Background(), a, model.ArtifactTypeSurveySpec,
		func(_ context.Context, m *agent.Metrics) (*model.SurveySpec, error) {
			m.AddTokens(10)
			return &model.SurveySpec{Title: "t"}, nil
		})
	require.NoError(t, err)
	require.NotNil(t, art.Data)
	assert.Equal(t, model.ArtifactTypeSurveySpec, art.Metadata[model.MetaKeyType])

	summary, ok := art.Metadata[model.MetaKeyMetrics].(map[string]any)
	require.True(t, ok, "expected metrics summary in artifact metadata")
	assert.Equal(t, 10, summary["tokens_used"])
	assert.Equal(t, 0, summary["error_count"])
	assert.Contains(t, summary, "duration_seconds")

	assert.Len(t, a.Conversation.Artifacts(), 1)
}

func TestRunHooks(t *testing.T) {
	a := agent.New(fastConfig(llm.NewFake("unused")))
	var sequence []string
	a.PreRun = func(context.Context) error {
		sequence = append(sequence, "pre")
		return nil
	}
	a.PostRun = func(_ context.Context, result any) error {
		sequence = append(sequence, "post")
		assert.NotNil(t, result)
		return nil
	}

	_, err := agent.Run(context.Background(), a, model.ArtifactTypeSurveySpec,
		func(context.Context, *agent.Metrics) (*model.SurveySpec, error) {
			sequence = append(sequence, "exec")
			return &model.SurveySpec{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "exec", "post"}, sequence)
}

func TestRunPropagatesExecError(t *testing.T) {
	a := agent.New(fastConfig(llm.NewFake("unused")))
	boom := errors.New("stage blew up")

	_, err := agent.Run(context.Background(), a, model.ArtifactTypeSurveySpec,
		func(context.Context, *agent.Metrics) (*model.SurveySpec, error) {
			return nil, boom
		})
	require.ErrorIs(t, err, boom)
}

func TestExecuteTool(t *testing.T) {
	a := agent.New(fastConfig(llm.NewFake("unused")))
	a.AddTool(agent.Tool{
		Name:        "word_count",
		Description: "counts words",
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			s, _ := args["text"].(string)
			if s == "" {
				return nil, fmt.Errorf("empty text")
			}
			return len(s), nil
		},
	})

	m := agent.NewMetrics()
	out, err := a.ExecuteTool(context.Background(), m, "word_count", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	// Tool failure is wrapped with the tool's name.
	_, err = a.ExecuteTool(context.Background(), m, "word_count", map[string]any{})
	var te *agent.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "word_count", te.Tool)

	// Unknown tool.
	_, err = a.ExecuteTool(context.Background(), m, "no_such_tool", nil)
	require.ErrorIs(t, err, agent.ErrToolNotFound)
}

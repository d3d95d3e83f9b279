package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
)

const specSystemPrompt = `You are a survey specification expert. Your role is to analyze survey requests and create detailed specifications that will guide the survey creation process. You should consider:
    1. The purpose and goals of the survey
    2. Target audience and their characteristics
    3. Appropriate question types and flow
    4. Target completion time
    5. Required number of responses
    6. Testable hypotheses the survey should address

Provide clear, actionable specifications that can be used to create an effective survey.

Please provide your response in JSON format with the following structure:
{
    "title": "string",
    "description": "string",
    "questions": [
        {
            "text": "string",
            "type": "multiple_choice|text|rating|boolean",
            "options": ["string"] (optional),
            "required": boolean
        }
    ],
    "target_audience": "string",
    "target_completion_time": "string",
    "required_responses": integer,
    "hypotheses": ["string"]
}`

const specUpdatePrompt = `You are a survey specification expert. You will receive a current survey specification and feedback/changes to make. Your task is to update the specification based on the feedback while preserving its purpose and overall quality.

You should:
1. Make exactly the requested changes
2. Keep all fields that the feedback does not touch
3. Maintain clarity and internal consistency

Please provide your response in JSON format with the following structure:
{
    "title": "string",
    "description": "string",
    "questions": [
        {
            "text": "string",
            "type": "multiple_choice|text|rating|boolean",
            "options": ["string"] (optional),
            "required": boolean
        }
    ],
    "target_audience": "string",
    "target_completion_time": "string",
    "required_responses": integer,
    "hypotheses": ["string"]
}`

// SpecAgent turns a natural-language research question into a SurveySpec.
type SpecAgent struct {
	*Base
}

// NewSpecAgent creates the spec stage agent. cfg.Name is overridden.
func NewSpecAgent(cfg Config) *SpecAgent {
	cfg.Name = "spec"
	return &SpecAgent{Base: New(cfg)}
}

// Generate produces a survey specification for the research question. It
// never returns an LLM failure: once the outer retry is exhausted it returns
// a degraded fallback artifact with a user-facing message instead.
func (s *SpecAgent) Generate(ctx context.Context, question string) (model.Artifact[model.SurveySpec], error) {
	var degradedReason string

	art, err := Run(ctx, s.Base, model.ArtifactTypeSurveySpec, func(ctx context.Context, m *Metrics) (*model.SurveySpec, error) {
		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: specSystemPrompt},
			{Role: llm.RoleUser, Content: "Please create a survey specification in JSON format for the following request:\n\n" + question},
		}

		spec, genErr := structuredWithRetry[model.SurveySpec](ctx, s.Base, m, msgs)
		if genErr != nil {
			degradedReason = degradedMessage(genErr, "Please try again or rephrase your research question.")
			s.logger.Error("spec generation exhausted retries", "error", genErr)
			return fallbackSpec(degradedReason), nil
		}
		return spec, nil
	})
	if err != nil {
		return art, err
	}
	if degradedReason != "" {
		art.MarkDegraded(degradedReason)
	}
	return art, nil
}

// Update revises an existing specification from free-text feedback. On
// exhausted retries it returns the current spec annotated with the error,
// preserving prior work instead of discarding it.
func (s *SpecAgent) Update(ctx context.Context, current model.SurveySpec, changes string) (model.Artifact[model.SurveySpec], error) {
	var degradedReason string

	art, err := Run(ctx, s.Base, model.ArtifactTypeSurveySpec, func(ctx context.Context, m *Metrics) (*model.SurveySpec, error) {
		currentJSON, merr := json.MarshalIndent(current, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal current spec: %w", merr)
		}

		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: specUpdatePrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Current Specification:\n%s\n\nRequested Changes:\n%s\n\nPlease update the survey specification based on the requested changes.",
				currentJSON, changes)},
		}

		spec, genErr := structuredWithRetry[model.SurveySpec](ctx, s.Base, m, msgs)
		if genErr != nil {
			degradedReason = degradedMessage(genErr, "Please try again or adjust your feedback.")
			s.logger.Error("spec update exhausted retries", "error", genErr)
			annotated := current
			annotated.Description = fmt.Sprintf("UPDATE ERROR: %s %s", updateErrorPreamble("specification"), degradedReason)
			return &annotated, nil
		}
		return spec, nil
	})
	if err != nil {
		return art, err
	}
	if degradedReason != "" {
		art.MarkDegraded(degradedReason)
	}
	return art, nil
}

// structuredWithRetry runs the outer stage-level retry (exponential backoff)
// around a structured-output call.
func structuredWithRetry[T any](ctx context.Context, a *Base, m *Metrics, msgs []llm.Message) (*T, error) {
	var out *T
	err := a.outerPolicy().Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = StructuredOutput[T](ctx, a, m, msgs)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// degradedMessage picks the user-facing wording for an exhausted retry loop,
// distinguishing an open circuit breaker from other failures.
func degradedMessage(err error, otherwise string) string {
	if errors.Is(err, ErrCircuitOpen) {
		return "Our AI service is temporarily unavailable. Please try again in a few minutes."
	}
	return otherwise
}

func updateErrorPreamble(what string) string {
	return fmt.Sprintf("We're having trouble updating your %s right now.", what)
}

func fallbackSpec(reason string) *model.SurveySpec {
	return &model.SurveySpec{
		Title:                "Survey Specification Temporarily Unavailable",
		Description:          "We're having trouble generating your survey specification right now. " + reason,
		Questions:            []model.Question{},
		TargetAudience:       "Unknown",
		TargetCompletionTime: "Unknown",
		RequiredResponses:    0,
	}
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
)

const surveySystemPrompt = `You are a survey design expert. Your role is to create detailed, well-crafted survey questions based on a survey specification. You should:

1. Create questions that directly test the specified hypotheses
2. Use appropriate question types for the data needed
3. Ensure questions are clear, unbiased, and easy to understand
4. Include demographic questions if relevant to the target audience
5. Structure questions in a logical flow
6. Consider survey length based on the target completion time

Question types available:
- "multiple_choice": For categorical responses with predefined options
- "text": For open-ended text responses
- "rating": For scale-based responses (1-5, 1-10, etc.)
- "boolean": For yes/no questions

Please provide your response in JSON format with the following structure:
{
    "title": "string",
    "description": "string",
    "questions": [
        {
            "text": "string",
            "type": "multiple_choice|text|rating|boolean",
            "options": ["string"] (required for multiple_choice, optional for rating),
            "required": boolean
        }
    ]
}`

const surveyUpdatePrompt = `You are a survey design expert. You will receive a survey specification, current survey questions, and feedback/changes to make. Your task is to update the survey questions based on the feedback while maintaining the survey's objectives and structure.

You should:
1. Make exactly the requested changes
2. Maintain question quality and clarity
3. Ensure questions still test the specified hypotheses
4. Keep the appropriate question types and flow
5. Preserve good survey design principles

Please provide your response in JSON format with the following structure:
{
    "title": "string",
    "description": "string",
    "questions": [
        {
            "text": "string",
            "type": "multiple_choice|text|rating|boolean",
            "options": ["string"] (required for multiple_choice, optional for rating),
            "required": boolean
        }
    ]
}`

// SurveyAgent builds a concrete questionnaire from a survey specification.
type SurveyAgent struct {
	*Base
}

// NewSurveyAgent creates the survey stage agent. cfg.Name is overridden.
func NewSurveyAgent(cfg Config) *SurveyAgent {
	cfg.Name = "survey"
	return &SurveyAgent{Base: New(cfg)}
}

// Generate creates survey questions from the specification. specID, when
// known, is recorded on the resulting survey; the LLM never produces it.
// Exhausted retries yield a degraded fallback artifact, never an error.
func (s *SurveyAgent) Generate(ctx context.Context, spec model.SurveySpec, specID *uuid.UUID) (model.Artifact[model.Survey], error) {
	var degradedReason string

	art, err := Run(ctx, s.Base, model.ArtifactTypeSurvey, func(ctx context.Context, m *Metrics) (*model.Survey, error) {
		specJSON, merr := json.MarshalIndent(spec, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal spec: %w", merr)
		}

		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: surveySystemPrompt},
			{Role: llm.RoleUser, Content: "Please create detailed survey questions based on this survey specification:\n\n" + string(specJSON)},
		}

		survey, genErr := structuredWithRetry[model.Survey](ctx, s.Base, m, msgs)
		if genErr != nil {
			degradedReason = degradedMessage(genErr, "Please try again or adjust your survey specification.")
			s.logger.Error("survey generation exhausted retries", "error", genErr)
			return fallbackSurvey(degradedReason, specID), nil
		}
		survey.SpecID = specID
		return survey, nil
	})
	if err != nil {
		return art, err
	}
	if degradedReason != "" {
		art.MarkDegraded(degradedReason)
	}
	return art, nil
}

// Update revises survey questions from free-text feedback. On exhausted
// retries the current survey is returned with the error embedded in its
// description, preserving the existing questions.
func (s *SurveyAgent) Update(ctx context.Context, spec model.SurveySpec, current model.Survey, changes string) (model.Artifact[model.Survey], error) {
	var degradedReason string

	art, err := Run(ctx, s.Base, model.ArtifactTypeSurvey, func(ctx context.Context, m *Metrics) (*model.Survey, error) {
		specJSON, merr := json.MarshalIndent(spec, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal spec: %w", merr)
		}
		surveyJSON, merr := json.MarshalIndent(current, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal current survey: %w", merr)
		}

		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: surveyUpdatePrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Survey Specification:\n%s\n\nCurrent Survey:\n%s\n\nRequested Changes:\n%s\n\nPlease update the survey questions based on the requested changes.",
				specJSON, surveyJSON, changes)},
		}

		survey, genErr := structuredWithRetry[model.Survey](ctx, s.Base, m, msgs)
		if genErr != nil {
			degradedReason = degradedMessage(genErr, "Please try again or adjust your feedback.")
			s.logger.Error("survey update exhausted retries", "error", genErr)
			annotated := current
			annotated.Description = fmt.Sprintf("UPDATE ERROR: %s %s", updateErrorPreamble("survey questions"), degradedReason)
			return &annotated, nil
		}
		survey.SpecID = current.SpecID
		return survey, nil
	})
	if err != nil {
		return art, err
	}
	if degradedReason != "" {
		art.MarkDegraded(degradedReason)
	}
	return art, nil
}

func fallbackSurvey(reason string, specID *uuid.UUID) *model.Survey {
	return &model.Survey{
		Title:       "Survey Generation Temporarily Unavailable",
		Description: "We're having trouble generating your survey questions right now. " + reason,
		Questions: []model.Question{
			{
				Text:     "Survey questions could not be generated at this time.",
				Type:     model.QuestionText,
				Required: false,
			},
		},
		SpecID: specID,
	}
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
)

const cohortSystemPrompt = `You are a survey research recruitment expert. Your role is to define the target cohort for a survey based on its specification. You should:

1. Translate the target audience into concrete inclusion criteria
2. Identify exclusion criteria that would bias the results
3. Estimate a realistic respondent pool size where possible
4. Note any recruitment considerations (channels, incentives, timing)

Please provide your response in JSON format with the following structure:
{
    "target_audience": "string",
    "inclusion_criteria": ["string"],
    "exclusion_criteria": ["string"],
    "estimated_pool_size": integer (optional),
    "recruitment_notes": "string" (optional)
}`

const cohortUpdatePrompt = `You are a survey research recruitment expert. You will receive a survey specification, the current cohort definition, and feedback/changes to make. Update the cohort based on the feedback while keeping it consistent with the survey's goals.

You should:
1. Make exactly the requested changes
2. Keep criteria specific and verifiable
3. Preserve criteria the feedback does not touch

Please provide your response in JSON format with the following structure:
{
    "target_audience": "string",
    "inclusion_criteria": ["string"],
    "exclusion_criteria": ["string"],
    "estimated_pool_size": integer (optional),
    "recruitment_notes": "string" (optional)
}`

// CohortAgent derives recruitment criteria from a survey specification.
type CohortAgent struct {
	*Base
}

// NewCohortAgent creates the cohort stage agent. cfg.Name is overridden.
func NewCohortAgent(cfg Config) *CohortAgent {
	cfg.Name = "cohort"
	return &CohortAgent{Base: New(cfg)}
}

// Generate defines the target cohort for the specification. Exhausted
// retries yield a degraded fallback artifact, never an error.
func (c *CohortAgent) Generate(ctx context.Context, spec model.SurveySpec) (model.Artifact[model.Cohort], error) {
	var degradedReason string

	art, err := Run(ctx, c.Base, model.ArtifactTypeCohort, func(ctx context.Context, m *Metrics) (*model.Cohort, error) {
		specJSON, merr := json.MarshalIndent(spec, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal spec: %w", merr)
		}

		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: cohortSystemPrompt},
			{Role: llm.RoleUser, Content: "Please define the target cohort for this survey specification:\n\n" + string(specJSON)},
		}

		cohort, genErr := structuredWithRetry[model.Cohort](ctx, c.Base, m, msgs)
		if genErr != nil {
			degradedReason = degradedMessage(genErr, "Please try again or adjust your survey specification.")
			c.logger.Error("cohort generation exhausted retries", "error", genErr)
			return fallbackCohort(degradedReason, spec), nil
		}
		return cohort, nil
	})
	if err != nil {
		return art, err
	}
	if degradedReason != "" {
		art.MarkDegraded(degradedReason)
	}
	return art, nil
}

// Update revises the cohort from free-text feedback. On exhausted retries
// the current cohort is returned with the error appended to its recruitment
// notes, preserving the existing criteria.
func (c *CohortAgent) Update(ctx context.Context, spec model.SurveySpec, current model.Cohort, changes string) (model.Artifact[model.Cohort], error) {
	var degradedReason string

	art, err := Run(ctx, c.Base, model.ArtifactTypeCohort, func(ctx context.Context, m *Metrics) (*model.Cohort, error) {
		specJSON, merr := json.MarshalIndent(spec, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal spec: %w", merr)
		}
		cohortJSON, merr := json.MarshalIndent(current, "", "  ")
		if merr != nil {
			return nil, fmt.Errorf("agent: marshal current cohort: %w", merr)
		}

		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: cohortUpdatePrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Survey Specification:\n%s\n\nCurrent Cohort:\n%s\n\nRequested Changes:\n%s\n\nPlease update the cohort based on the requested changes.",
				specJSON, cohortJSON, changes)},
		}

		cohort, genErr := structuredWithRetry[model.Cohort](ctx, c.Base, m, msgs)
		if genErr != nil {
			degradedReason = degradedMessage(genErr, "Please try again or adjust your feedback.")
			c.logger.Error("cohort update exhausted retries", "error", genErr)
			annotated := current
			note := fmt.Sprintf("UPDATE ERROR: %s %s", updateErrorPreamble("cohort"), degradedReason)
			if annotated.RecruitmentNotes != "" {
				annotated.RecruitmentNotes += "\n" + note
			} else {
				annotated.RecruitmentNotes = note
			}
			return &annotated, nil
		}
		return cohort, nil
	})
	if err != nil {
		return art, err
	}
	if degradedReason != "" {
		art.MarkDegraded(degradedReason)
	}
	return art, nil
}

func fallbackCohort(reason string, spec model.SurveySpec) *model.Cohort {
	audience := spec.TargetAudience
	if audience == "" {
		audience = "Unknown"
	}
	return &model.Cohort{
		TargetAudience:    audience,
		InclusionCriteria: []string{},
		ExclusionCriteria: []string{},
		RecruitmentNotes:  "We're having trouble generating cohort criteria right now. " + reason,
	}
}

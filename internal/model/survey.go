// Package model defines the core domain types for SurveyKong.
//
// The stage schemas (SurveySpec, Survey, Cohort) are the structured-output
// contracts the LLM must satisfy; their JSON shapes are embedded verbatim in
// the agent system prompts. Types use strong typing (UUIDs, time.Time, enums)
// and avoid interface{} wherever possible.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// QuestionType is the closed enumeration of supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
	QuestionRating         QuestionType = "rating"
	QuestionBoolean        QuestionType = "boolean"
)

// Valid reports whether t is one of the four supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionText, QuestionRating, QuestionBoolean:
		return true
	}
	return false
}

// Question is a single survey question. Options are expected for
// multiple_choice and optional for rating; this is not strictly enforced
// because LLM output occasionally omits them and the survey is still usable.
type Question struct {
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
}

// Validate checks the question's type against the enumeration.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("model: question text must not be empty")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("model: invalid question type %q", q.Type)
	}
	return nil
}

// SurveySpec is the structured specification the spec stage produces from a
// research question. It drives every downstream stage.
type SurveySpec struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Questions            []Question `json:"questions"`
	TargetAudience       string     `json:"target_audience"`
	TargetCompletionTime string     `json:"target_completion_time"`
	RequiredResponses    int        `json:"required_responses"`
	Hypotheses           []string   `json:"hypotheses,omitempty"`
}

// Validate checks the spec's questions against the type enumeration.
func (s SurveySpec) Validate() error {
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("model: question %d: %w", i, err)
		}
	}
	return nil
}

// Survey is the concrete questionnaire the survey stage builds from a spec.
// SpecID links back to the originating specification when known; it is set
// by the caller, never by the LLM.
type Survey struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	SpecID      *uuid.UUID `json:"spec_id,omitempty"`
}

// Validate checks the survey's questions against the type enumeration.
func (s Survey) Validate() error {
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("model: question %d: %w", i, err)
		}
	}
	return nil
}

// Cohort describes who should receive the survey.
type Cohort struct {
	TargetAudience    string   `json:"target_audience"`
	InclusionCriteria []string `json:"inclusion_criteria"`
	ExclusionCriteria []string `json:"exclusion_criteria"`
	EstimatedPoolSize *int     `json:"estimated_pool_size,omitempty"`
	RecruitmentNotes  string   `json:"recruitment_notes,omitempty"`
}

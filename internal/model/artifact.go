package model

import (
	"encoding/json"
	"time"
)

// Artifact type markers stored in metadata["type"].
const (
	ArtifactTypeSurveySpec = "survey_specification"
	ArtifactTypeSurvey     = "survey_questions"
	ArtifactTypeCohort     = "cohort_criteria"
	ArtifactTypeOutbound   = "outbound_results"
	ArtifactTypeAnalysis   = "analysis_report"
)

// Metadata keys set by the agent layer.
const (
	MetaKeyType     = "type"
	MetaKeyMetrics  = "metrics"
	MetaKeyDegraded = "degraded"
)

// Artifact is the envelope every pipeline stage produces: the typed stage
// output plus free-form metadata and a creation timestamp. An artifact is
// owned by the agent call that created it; only that agent enriches metadata
// (e.g. attaching run metrics) before handing it to the caller.
type Artifact[T any] struct {
	Data      *T             `json:"data"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewArtifact wraps data in a fresh artifact stamped with the current time.
// artifactType goes into metadata["type"].
func NewArtifact[T any](data *T, artifactType string) Artifact[T] {
	return Artifact[T]{
		Data:      data,
		Metadata:  map[string]any{MetaKeyType: artifactType},
		Timestamp: time.Now().UTC(),
	}
}

// Degraded returns true if the artifact carries a degradation marker,
// meaning generation failed and the data is a fallback.
func (a Artifact[T]) Degraded() bool {
	v, ok := a.Metadata[MetaKeyDegraded].(bool)
	return ok && v
}

// MarkDegraded records that the artifact data is a fallback, with the
// user-facing reason.
func (a *Artifact[T]) MarkDegraded(reason string) {
	a.Metadata[MetaKeyDegraded] = true
	a.Metadata["degraded_reason"] = reason
}

// JSON renders the full envelope for persistence.
func (a Artifact[T]) JSON() ([]byte, error) {
	return json.Marshal(a)
}

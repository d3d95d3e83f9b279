package agent

import (
	"context"

	"github.com/surveykong/surveykong/internal/model"
)

// The outbound and analysis stages are not implemented: survey distribution
// and statistical analysis live outside this service. Their agents produce
// placeholder artifacts so the workflow's stage sequence and persistence
// behave uniformly end to end.

// OutboundAgent is the placeholder distribution stage.
type OutboundAgent struct {
	*Base
}

// NewOutboundAgent creates the outbound stage agent. cfg.Name is overridden.
func NewOutboundAgent(cfg Config) *OutboundAgent {
	cfg.Name = "outbound"
	return &OutboundAgent{Base: New(cfg)}
}

// Generate returns a placeholder outbound artifact.
func (o *OutboundAgent) Generate(ctx context.Context, _ model.Survey, _ model.Cohort) (model.Artifact[map[string]any], error) {
	return Run(ctx, o.Base, model.ArtifactTypeOutbound, func(_ context.Context, _ *Metrics) (*map[string]any, error) {
		data := map[string]any{"placeholder": "outbound_data"}
		return &data, nil
	})
}

// AnalysisAgent is the placeholder analysis stage.
type AnalysisAgent struct {
	*Base
}

// NewAnalysisAgent creates the analysis stage agent. cfg.Name is overridden.
func NewAnalysisAgent(cfg Config) *AnalysisAgent {
	cfg.Name = "analysis"
	return &AnalysisAgent{Base: New(cfg)}
}

// Generate returns a placeholder analysis artifact.
func (a *AnalysisAgent) Generate(ctx context.Context, _ map[string]any) (model.Artifact[map[string]any], error) {
	return Run(ctx, a.Base, model.ArtifactTypeAnalysis, func(_ context.Context, _ *Metrics) (*map[string]any, error) {
		data := map[string]any{"placeholder": "analysis_data"}
		return &data, nil
	})
}

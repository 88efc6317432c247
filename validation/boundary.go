package validation

import (
	"context"

	"github.com/plantsight/pipevalidation/units"
)

// Backend is the validation service boundary. Implementations own rule,
// test, run and result persistence and the actual rule evaluation; this
// package only orchestrates them. List calls return full catalogs in
// backend order; callers sort.
type Backend interface {
	GetTemplates(ctx context.Context, projectID string) ([]RuleTemplate, error)
	CreateRule(ctx context.Context, params RuleCreateParams) (*RuleSpec, error)
	GetRules(ctx context.Context, projectID string) ([]*RuleSpec, error)
	CreateTest(ctx context.Context, params TestCreateParams) (*TestSpec, error)
	GetTests(ctx context.Context, projectID string) ([]*TestSpec, error)
	RunTest(ctx context.Context, testID, modelID, modelVersionID string) (*RunRecord, error)
	GetRuns(ctx context.Context, projectID string) ([]*RunRecord, error)
	GetResult(ctx context.Context, resultID string) (*ResultSet, error)
}

// Category distinguishes the two highlight treatments: excessive
// insulation wastes money, insufficient insulation is a hazard.
type Category string

const (
	CategoryCost   Category = "cost"
	CategorySafety Category = "safety"
)

// Viewer is the 3D viewer boundary consumed, not produced, by this
// package. The two highlight categories must be visually distinct.
type Viewer interface {
	ClearHighlights()
	Highlight(elementIDs []string, category Category)
	ZoomAndSelect(elementIDs []string)
}

// PipelineSource answers the model's pipeline topology query: each
// pipeline's stable identity and full member element set.
type PipelineSource interface {
	GetPipelines(ctx context.Context, modelID string) ([]Pipeline, error)
}

// Converter converts a value between units. Satisfied by
// units.Converter; the context allows remote-backed implementations.
type Converter interface {
	Convert(ctx context.Context, value float64, from, to units.Unit) (float64, error)
}

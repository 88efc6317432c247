package validation

import (
	"context"
	"fmt"

	"github.com/plantsight/pipevalidation/units"
)

// Issue categories a result row classifies into. Insufficient
// insulation is a safety hazard; excessive insulation is wasted cost.
const (
	IssueInsulationTooLow  = "Insulation too low"
	IssueInsulationTooHigh = "Insulation too high"
)

// Correlator joins a completed run's raw result set to the rule catalog
// and the model's pipeline topology, classifies each failure, and
// produces presentation-ready records plus the element sets to
// highlight.
type Correlator struct {
	converter Converter
}

// NewCorrelator returns a Correlator using the given unit converter for
// rendering native-unit values back into engineering units.
func NewCorrelator(converter Converter) *Correlator {
	return &Correlator{converter: converter}
}

// Correlation is the outcome of one correlation pass. Records preserves
// the result set's row order; the row→pipeline mapping is retained so a
// row selection can resolve back to the exact pipeline computed for it.
type Correlation struct {
	Records        []PresentationRecord `json:"records"`
	CostElements   []string             `json:"costElements"`
	SafetyElements []string             `json:"safetyElements"`

	rowPipelines []*Pipeline
}

// Correlate produces exactly one presentation record per result row,
// in row order. Per row:
//
//   - The rule is resolved through the result set's rule list into the
//     catalog. A miss (including an out-of-range rule index) leaves the
//     issue blank but still emits the record.
//   - The pipeline whose id equals the row's element id is resolved. A
//     miss emits the record without any highlight contribution.
//   - Only when both resolve is the row classified: a bad value
//     strictly below the rule's lower bound is a safety issue and the
//     pipeline's full element set joins SafetyElements; equality or
//     above is always a cost issue and the set joins CostElements.
//
// Element sets are not deduplicated across rows: two rows implicating
// the same pipeline differently legitimately place its elements in both
// sets.
func (c *Correlator) Correlate(ctx context.Context, resultSet *ResultSet, rules map[string]*RuleSpec, pipelines []Pipeline) (*Correlation, error) {
	if resultSet == nil {
		return nil, fmt.Errorf("result set is nil")
	}

	byID := make(map[string]*Pipeline, len(pipelines))
	for i := range pipelines {
		byID[pipelines[i].ID] = &pipelines[i]
	}

	corr := &Correlation{
		Records:        make([]PresentationRecord, 0, len(resultSet.Rows)),
		CostElements:   []string{},
		SafetyElements: []string{},
		rowPipelines:   make([]*Pipeline, len(resultSet.Rows)),
	}

	for i, row := range resultSet.Rows {
		var rule *RuleSpec
		if row.RuleIndex >= 0 && row.RuleIndex < len(resultSet.RuleList) {
			rule = rules[resultSet.RuleList[row.RuleIndex].ID]
		}
		pipeline := byID[row.ElementID]
		corr.rowPipelines[i] = pipeline

		record := PresentationRecord{
			ElementLabel: row.ElementLabel,
			Material:     UnspecifiedMaterial,
		}

		if rule != nil && pipeline != nil {
			if row.BadValue < rule.FunctionParameters.LowerBound {
				record.Issue = IssueInsulationTooLow
				corr.SafetyElements = append(corr.SafetyElements, pipeline.Pipes...)
			} else {
				record.Issue = IssueInsulationTooHigh
				corr.CostElements = append(corr.CostElements, pipeline.Pipes...)
			}
		}

		if rule != nil {
			// Ranges render from the original-unit metadata, not the
			// converted functionParameters.
			if meta, err := ParsePresentationMetadata(rule.Description); err == nil {
				record.Material = meta.MaterialLabel()
				record.TemperatureRange = FormatTemperatureRange(meta)
				record.InsulationRange = FormatInsulationRange(meta)
			}
		}

		if inches, err := c.converter.Convert(ctx, row.BadValue, units.Meter, units.Inch); err == nil {
			record.BadValue = formatNumber(inches) + " inch"
		} else {
			record.BadValue = formatNumber(row.BadValue)
		}

		corr.Records = append(corr.Records, record)
	}

	return corr, nil
}

// ApplyHighlights clears any prior highlight state, then applies the
// cost treatment to every cost element and the safety treatment to
// every safety element.
func (corr *Correlation) ApplyHighlights(v Viewer) {
	v.ClearHighlights()
	v.Highlight(corr.CostElements, CategoryCost)
	v.Highlight(corr.SafetyElements, CategorySafety)
}

// RowPipeline returns the pipeline resolved for row i during
// correlation, or false when none resolved.
func (corr *Correlation) RowPipeline(i int) (*Pipeline, bool) {
	if i < 0 || i >= len(corr.rowPipelines) || corr.rowPipelines[i] == nil {
		return nil, false
	}
	return corr.rowPipelines[i], true
}

// ZoomToRow asks the viewer to frame and select the full element set of
// the pipeline computed for row i. Returns false when that row had no
// pipeline.
func (corr *Correlation) ZoomToRow(i int, v Viewer) bool {
	pipeline, ok := corr.RowPipeline(i)
	if !ok {
		return false
	}
	v.ZoomAndSelect(pipeline.Pipes)
	return true
}

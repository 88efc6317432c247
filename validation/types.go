package validation

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnspecifiedMaterial is the literal shown when a rule's stored metadata
// carries no material label.
const UnspecifiedMaterial = "unspecified"

// RuleTemplate identifies a rule predicate shape offered by the backend.
type RuleTemplate struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Material is an insulation material option: a human label plus the
// value the model stores for the INSULATION property.
type Material struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FunctionParameters parameterize a range-check rule in the model's
// native units: the value of PropertyName must lie within
// [LowerBound, UpperBound].
type FunctionParameters struct {
	LowerBound   float64 `json:"lowerBound"`
	UpperBound   float64 `json:"upperBound"`
	PropertyName string  `json:"propertyName"`
}

// PresentationMetadata preserves a rule's inputs in their original
// units. The native-unit bounds in FunctionParameters cannot be
// rendered back to the user meaningfully, so the pre-conversion values
// ride along with the rule and are read back for display.
type PresentationMetadata struct {
	InsulationLow  float64  `json:"insulationLow"`
	InsulationHigh float64  `json:"insulationHigh"`
	TempLow        float64  `json:"tempLow"`
	TempHigh       float64  `json:"tempHigh"`
	Material       Material `json:"material"`
}

// Encode serializes the metadata for storage in a rule's description.
func (m PresentationMetadata) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode presentation metadata: %w", err)
	}
	return string(data), nil
}

// ParsePresentationMetadata decodes metadata previously produced by
// Encode from a rule's description field.
func ParsePresentationMetadata(s string) (PresentationMetadata, error) {
	var m PresentationMetadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return PresentationMetadata{}, fmt.Errorf("failed to parse presentation metadata: %w", err)
	}
	return m, nil
}

// MaterialLabel returns the material label for display, degrading to
// UnspecifiedMaterial when no label was stored.
func (m PresentationMetadata) MaterialLabel() string {
	if m.Material.Label == "" {
		return UnspecifiedMaterial
	}
	return m.Material.Label
}

// RuleSpec is a named, typed predicate over one model property. Created
// once by the rule builder and owned by the backend catalog; read-only
// to this package afterwards.
type RuleSpec struct {
	ID                 string             `json:"id"`
	DisplayName        string             `json:"displayName"`
	Description        string             `json:"description"`
	TemplateID         string             `json:"templateId"`
	FunctionName       string             `json:"functionName"`
	Severity           string             `json:"severity"`
	TargetSchema       string             `json:"ecSchema"`
	TargetClass        string             `json:"ecClass"`
	WhereClause        string             `json:"whereClause"`
	FunctionParameters FunctionParameters `json:"functionParameters"`
	CreatedAt          time.Time          `json:"creationDateTime"`
}

// RuleCreateParams carries everything the backend needs to create a rule.
type RuleCreateParams struct {
	ProjectID          string             `json:"projectId"`
	DisplayName        string             `json:"displayName"`
	Description        string             `json:"description"`
	TemplateID         string             `json:"templateId"`
	Severity           string             `json:"severity"`
	TargetSchema       string             `json:"ecSchema"`
	TargetClass        string             `json:"ecClass"`
	WhereClause        string             `json:"whereClause"`
	DataType           string             `json:"dataType"`
	FunctionParameters FunctionParameters `json:"functionParameters"`
}

// TestSpec is a named ordered collection of rule ids. StopOnFailure is
// always false here: every rule is evaluated on every run.
type TestSpec struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	Description   string    `json:"description"`
	RuleIDs       []string  `json:"rules"`
	StopOnFailure bool      `json:"stopExecutionOnFailure"`
	CreatedAt     time.Time `json:"creationDateTime"`
}

// TestCreateParams carries everything the backend needs to create a test.
type TestCreateParams struct {
	ProjectID     string   `json:"projectId"`
	DisplayName   string   `json:"displayName"`
	Description   string   `json:"description"`
	RuleIDs       []string `json:"rules"`
	StopOnFailure bool     `json:"stopExecutionOnFailure"`
}

// RunStatus is the backend-reported state of one test execution. The
// terminal-state vocabulary is backend-defined; everything other than
// RunCompleted is treated as still pending.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Completed reports whether the run has produced a viewable result.
func (s RunStatus) Completed() bool {
	return s == RunCompleted
}

// RunRecord is one execution instance of a test. TestID is a
// back-reference, not ownership. ResultID is populated iff the status
// is RunCompleted. Runs are never mutated here, only re-fetched.
type RunRecord struct {
	ID         string    `json:"id"`
	TestID     string    `json:"testId"`
	Status     RunStatus `json:"status"`
	ExecutedAt time.Time `json:"executedDateTime"`
	ResultID   string    `json:"resultId,omitempty"`
}

// RuleRef is an entry of a result set's rule list; result rows address
// rules by index into that list.
type RuleRef struct {
	ID string `json:"id"`
}

// ResultRow is one validation failure: the offending element and the
// property value that violated the rule, in native units.
type ResultRow struct {
	RuleIndex    int     `json:"ruleIndex"`
	ElementID    string  `json:"elementId"`
	ElementLabel string  `json:"elementLabel"`
	BadValue     float64 `json:"badValue"`
}

// ResultSet is the backend's raw output for one completed run. Row
// order is preserved through correlation: it is the display order and
// the index space for row-click lookups.
type ResultSet struct {
	RuleList []RuleRef   `json:"ruleList"`
	Rows     []ResultRow `json:"result"`
}

// Pipeline is a named pipeline run in the model: its identity plus the
// full set of member element ids. The whole pipeline, not the single
// failing segment, is the unit of highlighting.
type Pipeline struct {
	ID    string   `json:"id"`
	Pipes []string `json:"pipes"`
}

// PresentationRecord is the display form of one result row. Transient:
// recomputed from rule, row and pipeline on every correlation pass.
type PresentationRecord struct {
	ElementLabel     string `json:"elementLabel"`
	Material         string `json:"material"`
	TemperatureRange string `json:"temperature"`
	InsulationRange  string `json:"insulation"`
	BadValue         string `json:"badValue"`
	Issue            string `json:"issue"`
}

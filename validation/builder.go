package validation

import (
	"context"
	"fmt"

	"github.com/plantsight/pipevalidation/units"
)

// TemplatePropertyValueRange names the backend template for rules of
// the shape "value must lie within [lower, upper]".
const TemplatePropertyValueRange = "PropertyValueRange"

// Fixed identifiers of the plant model entities an insulation rule
// targets.
const (
	targetSchema        = "Openplant_3d"
	targetClass         = "Piping_network_system"
	targetProperty      = "INSULATION_THICKNESS"
	temperatureProperty = "NORMAL_OPERATING_TEMPERATURE"
	materialProperty    = "INSULATION"
	ruleSeverity        = "high"
	ruleDataType        = "property"
)

// InsulationRuleParams are the engineering-unit inputs for a new pipe
// insulation rule: thickness bounds in inches, the operating
// temperature band in degrees Fahrenheit, and the insulation material.
type InsulationRuleParams struct {
	InsulationLow  float64
	InsulationHigh float64
	TempLow        float64
	TempHigh       float64
	Material       Material
}

// Builder constructs insulation validation rules: it converts
// engineering-unit inputs to the model's native SI units, assembles the
// entity filter, and submits the rule to the backend with the original
// inputs preserved as presentation metadata.
type Builder struct {
	backend   Backend
	converter Converter
	projectID string
}

// NewBuilder returns a Builder for one project.
func NewBuilder(backend Backend, converter Converter, projectID string) *Builder {
	return &Builder{
		backend:   backend,
		converter: converter,
		projectID: projectID,
	}
}

// CreateInsulationRule creates a PropertyValueRange rule validating
// pipe insulation thickness for the given temperature band and
// material. The absence of the PropertyValueRange template is a fatal
// precondition: it fails with TemplateNotFoundError before any backend
// mutation. When the template list holds multiple entries by that name
// the first match is used.
func (b *Builder) CreateInsulationRule(ctx context.Context, p InsulationRuleParams) (*RuleSpec, error) {
	templates, err := b.backend.GetTemplates(ctx, b.projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule templates: %w", err)
	}

	template, ok := findTemplate(templates, TemplatePropertyValueRange)
	if !ok {
		return nil, &TemplateNotFoundError{Name: TemplatePropertyValueRange}
	}

	// The model stores lengths in meters and temperatures in kelvin.
	insulationLowM, err := b.converter.Convert(ctx, p.InsulationLow, units.Inch, units.Meter)
	if err != nil {
		return nil, err
	}
	insulationHighM, err := b.converter.Convert(ctx, p.InsulationHigh, units.Inch, units.Meter)
	if err != nil {
		return nil, err
	}
	tempLowK, err := b.converter.Convert(ctx, p.TempLow, units.Fahrenheit, units.Kelvin)
	if err != nil {
		return nil, err
	}
	tempHighK, err := b.converter.Convert(ctx, p.TempHigh, units.Fahrenheit, units.Kelvin)
	if err != nil {
		return nil, err
	}

	clause := NewWhereClause().
		LessThan(temperatureProperty, tempHighK).
		GreaterThan(temperatureProperty, tempLowK).
		Equals(materialProperty, p.Material.Value)
	if err := clause.Validate(); err != nil {
		return nil, err
	}

	// Original-unit inputs ride along with the rule for later display.
	meta := PresentationMetadata{
		InsulationLow:  p.InsulationLow,
		InsulationHigh: p.InsulationHigh,
		TempLow:        p.TempLow,
		TempHigh:       p.TempHigh,
		Material:       p.Material,
	}
	description, err := meta.Encode()
	if err != nil {
		return nil, err
	}

	displayName := fmt.Sprintf("%s | Temperature: %s - %s | Insulation: %s - %s",
		p.Material.Label,
		formatNumber(p.TempLow), formatNumber(p.TempHigh),
		formatNumber(p.InsulationLow), formatNumber(p.InsulationHigh))

	rule, err := b.backend.CreateRule(ctx, RuleCreateParams{
		ProjectID:    b.projectID,
		DisplayName:  displayName,
		Description:  description,
		TemplateID:   template.ID,
		Severity:     ruleSeverity,
		TargetSchema: targetSchema,
		TargetClass:  targetClass,
		WhereClause:  clause.String(),
		DataType:     ruleDataType,
		FunctionParameters: FunctionParameters{
			LowerBound:   insulationLowM,
			UpperBound:   insulationHighM,
			PropertyName: targetProperty,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return rule, nil
}

// ProjectID returns the project this builder creates rules in.
func (b *Builder) ProjectID() string {
	return b.projectID
}

// findTemplate returns the first template with the given display name.
func findTemplate(templates []RuleTemplate, name string) (RuleTemplate, bool) {
	for _, t := range templates {
		if t.DisplayName == name {
			return t, true
		}
	}
	return RuleTemplate{}, false
}

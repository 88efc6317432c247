package main

import (
	"github.com/plantsight/pipevalidation/validation"
)

// CreateRuleRequest carries engineering-unit inputs for a new
// insulation rule: inches for thickness, degrees Fahrenheit for
// temperature.
type CreateRuleRequest struct {
	InsulationLow  float64             `json:"insulationLow"`
	InsulationHigh float64             `json:"insulationHigh"`
	TempLow        float64             `json:"tempLow"`
	TempHigh       float64             `json:"tempHigh"`
	Material       validation.Material `json:"material"`
}

// CreateTestRequest bundles existing rules into a named test.
type CreateTestRequest struct {
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	RuleIDs     []string `json:"ruleIds"`
}

// RuleView is a rule decorated with its original-unit presentation
// fields for listing.
type RuleView struct {
	*validation.RuleSpec
	Material         string `json:"material"`
	TemperatureRange string `json:"temperature"`
	InsulationRange  string `json:"insulation"`
}

func newRuleView(rule *validation.RuleSpec) RuleView {
	view := RuleView{RuleSpec: rule, Material: validation.UnspecifiedMaterial}
	if meta, err := validation.ParsePresentationMetadata(rule.Description); err == nil {
		view.Material = meta.MaterialLabel()
		view.TemperatureRange = validation.FormatTemperatureRange(meta)
		view.InsulationRange = validation.FormatInsulationRange(meta)
	}
	return view
}

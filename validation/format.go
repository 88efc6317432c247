package validation

import (
	"fmt"
	"strconv"
)

// formatNumber renders a float the way users typed it: shortest text
// that round-trips, no trailing zeros, no exponent for typical inputs.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTemperatureRange renders a rule's temperature band in its
// original units for display.
func FormatTemperatureRange(meta PresentationMetadata) string {
	return fmt.Sprintf("%s °F  - %s °F", formatNumber(meta.TempLow), formatNumber(meta.TempHigh))
}

// FormatInsulationRange renders a rule's allowed insulation thickness
// in its original units for display.
func FormatInsulationRange(meta PresentationMetadata) string {
	return fmt.Sprintf("%s inch - %s inch", formatNumber(meta.InsulationLow), formatNumber(meta.InsulationHigh))
}

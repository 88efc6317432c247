package validation

// Default input ranges for insulation rules, in user-facing units.
const (
	DefaultTempLowF         = 32.0
	DefaultTempHighF        = 500.0
	DefaultInsulationLowIn  = 0.0
	DefaultInsulationHighIn = 4.0
)

// materials lists the insulation materials the plant model knows, with
// the value each stores in the INSULATION property.
var materials = []Material{
	{Label: "Arnosite Asbestos", Value: "ARNOSITE_ASBESTOS"},
	{Label: "Calcium Silicate", Value: "CALCIUM_SILICATE"},
	{Label: "Careytemp", Value: "CAREYTEMP"},
	{Label: "Cellular Glass", Value: "CELLULAR_GLASS"},
	{Label: "Fiber Glass", Value: "FIBER_GLASS"},
	{Label: "High Temp", Value: "HIGH_TEMP"},
	{Label: "Kaylo 10", Value: "KAYLO_10"},
	{Label: "Mineral Wool", Value: "MINERAL_WOOL"},
	{Label: "Perlite", Value: "PERLITE"},
	{Label: "Poly-urethane", Value: "POLY_URETHANE"},
	{Label: "Styro-foam", Value: "STYRO_FOAM"},
	{Label: "Super-X", Value: "SUPER_X"},
}

// Materials returns the selectable insulation materials.
func Materials() []Material {
	out := make([]Material, len(materials))
	copy(out, materials)
	return out
}

// MaterialByValue looks up a material by its model value.
func MaterialByValue(value string) (Material, bool) {
	for _, m := range materials {
		if m.Value == value {
			return m, true
		}
	}
	return Material{}, false
}

package validation

import (
	"strings"
	"testing"
)

// TestPresentationMetadataRoundTrip verifies Encode stores the original
// values exactly and ParsePresentationMetadata reads them back
// unchanged.
func TestPresentationMetadataRoundTrip(t *testing.T) {
	meta := PresentationMetadata{
		InsulationLow:  0.5,
		InsulationHigh: 4,
		TempLow:        32,
		TempHigh:       500,
		Material:       Material{Label: "Fiber Glass", Value: "FIBER_GLASS"},
	}

	encoded, err := meta.Encode()
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	decoded, err := ParsePresentationMetadata(encoded)
	if err != nil {
		t.Fatalf("ParsePresentationMetadata() failed: %v", err)
	}

	if decoded != meta {
		t.Errorf("round trip = %+v, want %+v", decoded, meta)
	}
}

// TestPresentationMetadataFields verifies the serialized form carries
// exactly the expected field names.
func TestPresentationMetadataFields(t *testing.T) {
	meta := PresentationMetadata{
		InsulationLow:  1,
		InsulationHigh: 2,
		TempLow:        100,
		TempHigh:       200,
		Material:       Material{Label: "Perlite", Value: "PERLITE"},
	}

	encoded, err := meta.Encode()
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	for _, field := range []string{"insulationLow", "insulationHigh", "tempLow", "tempHigh", "material", "label", "value"} {
		if !strings.Contains(encoded, `"`+field+`"`) {
			t.Errorf("encoded metadata missing field %q: %s", field, encoded)
		}
	}
}

// TestMaterialLabelFallback verifies a missing material label degrades
// to the "unspecified" marker instead of failing.
func TestMaterialLabelFallback(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{"label present", `{"insulationLow":0,"insulationHigh":4,"tempLow":32,"tempHigh":500,"material":{"label":"Perlite","value":"PERLITE"}}`, "Perlite"},
		{"label absent", `{"insulationLow":0,"insulationHigh":4,"tempLow":32,"tempHigh":500,"material":{"value":"PERLITE"}}`, UnspecifiedMaterial},
		{"material absent", `{"insulationLow":0,"insulationHigh":4,"tempLow":32,"tempHigh":500}`, UnspecifiedMaterial},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			meta, err := ParsePresentationMetadata(tc.raw)
			if err != nil {
				t.Fatalf("ParsePresentationMetadata() failed: %v", err)
			}
			if got := meta.MaterialLabel(); got != tc.want {
				t.Errorf("MaterialLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestParsePresentationMetadataInvalid verifies malformed metadata
// fails with an error rather than a partial value.
func TestParsePresentationMetadataInvalid(t *testing.T) {
	if _, err := ParsePresentationMetadata("not json"); err == nil {
		t.Error("ParsePresentationMetadata() should fail for malformed input")
	}
}

// TestRunStatusCompleted verifies only the completed status counts as
// terminal with a viewable result.
func TestRunStatusCompleted(t *testing.T) {
	testCases := []struct {
		status RunStatus
		want   bool
	}{
		{RunQueued, false},
		{RunRunning, false},
		{RunCompleted, true},
		{RunFailed, false},
		{RunStatus("archived"), false},
	}

	for _, tc := range testCases {
		if got := tc.status.Completed(); got != tc.want {
			t.Errorf("%s.Completed() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

// TestMaterialByValue verifies lookup of the canonical material list.
func TestMaterialByValue(t *testing.T) {
	m, ok := MaterialByValue("CALCIUM_SILICATE")
	if !ok {
		t.Fatal("MaterialByValue() should find CALCIUM_SILICATE")
	}
	if m.Label != "Calcium Silicate" {
		t.Errorf("label = %q, want %q", m.Label, "Calcium Silicate")
	}

	if _, ok := MaterialByValue("UNOBTAINIUM"); ok {
		t.Error("MaterialByValue() should not find unknown materials")
	}

	if got := len(Materials()); got != 12 {
		t.Errorf("Materials() has %d entries, want 12", got)
	}
}

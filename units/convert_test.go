package units

import (
	"context"
	"errors"
	"math"
	"testing"
)

// TestConvertKnownValues verifies the standard conversion formulas for
// the unit pairs the rule builder depends on.
func TestConvertKnownValues(t *testing.T) {
	c := NewConverter()

	testCases := []struct {
		name  string
		value float64
		from  Unit
		to    Unit
		want  float64
	}{
		{"one inch to meters", 1, Inch, Meter, 0.0254},
		{"four inches to meters", 4, Inch, Meter, 0.1016},
		{"meters to inches", 0.0254, Meter, Inch, 1},
		{"freezing point F to K", 32, Fahrenheit, Kelvin, 273.15},
		{"high temp F to K", 500, Fahrenheit, Kelvin, 533.15},
		{"kelvin to fahrenheit", 273.15, Kelvin, Fahrenheit, 32},
		{"foot to meters", 1, Foot, Meter, 0.3048},
		{"millimeters to inches", 25.4, Millimeter, Inch, 1},
		{"celsius to kelvin", 100, Celsius, Kelvin, 373.15},
		{"fahrenheit to celsius", 212, Fahrenheit, Celsius, 100},
		{"same unit is identity", 42.5, Meter, Meter, 42.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Convert(context.Background(), tc.value, tc.from, tc.to)
			if err != nil {
				t.Fatalf("Convert(%v, %s, %s) failed: %v", tc.value, tc.from, tc.to, err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Convert(%v, %s, %s) = %v, want %v", tc.value, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

// TestConvertRoundTrip verifies convert(convert(x, A, B), B, A) ≈ x
// within floating-point tolerance.
func TestConvertRoundTrip(t *testing.T) {
	c := NewConverter()

	testCases := []struct {
		name  string
		value float64
		a     Unit
		b     Unit
	}{
		{"inches", 3.7, Inch, Meter},
		{"fahrenheit", 451, Fahrenheit, Kelvin},
		{"fractional inches", 0.05, Inch, Meter},
		{"negative fahrenheit", -40, Fahrenheit, Kelvin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			there, err := c.Convert(context.Background(), tc.value, tc.a, tc.b)
			if err != nil {
				t.Fatalf("Convert() failed: %v", err)
			}
			back, err := c.Convert(context.Background(), there, tc.b, tc.a)
			if err != nil {
				t.Fatalf("Convert() back failed: %v", err)
			}
			if math.Abs(back-tc.value) > 1e-9 {
				t.Errorf("round trip of %v through %s = %v", tc.value, tc.b, back)
			}
		})
	}
}

// TestConvertErrors verifies unknown units and dimension mismatches fail
// with a ConversionError instead of producing a value.
func TestConvertErrors(t *testing.T) {
	c := NewConverter()

	testCases := []struct {
		name string
		from Unit
		to   Unit
	}{
		{"unknown source unit", Unit("FURLONG"), Meter},
		{"unknown target unit", Meter, Unit("CUBIT")},
		{"length to temperature", Inch, Kelvin},
		{"temperature to length", Fahrenheit, Meter},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Convert(context.Background(), 1, tc.from, tc.to)
			if err == nil {
				t.Fatalf("Convert(%s, %s) should fail", tc.from, tc.to)
			}
			var convErr *ConversionError
			if !errors.As(err, &convErr) {
				t.Errorf("error should be a ConversionError, got %T", err)
			}
		})
	}
}

// TestConvertCanceledContext verifies a canceled context stops the
// conversion before any work is done.
func TestConvertCanceledContext(t *testing.T) {
	c := NewConverter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Convert(ctx, 1, Inch, Meter)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Convert() with canceled context = %v, want context.Canceled", err)
	}
}

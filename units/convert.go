// Package units converts quantities between engineering units and the
// model's native SI units. Conversions are affine mappings into a
// per-dimension base unit (meter for length, kelvin for temperature),
// so any two units of the same dimension convert through the base.
package units

import (
	"context"
	"fmt"
)

// Unit identifies a measurement unit by its wire name.
type Unit string

const (
	Inch       Unit = "IN"
	Foot       Unit = "FT"
	Millimeter Unit = "MM"
	Meter      Unit = "M"
	Fahrenheit Unit = "FAHRENHEIT"
	Celsius    Unit = "CELSIUS"
	Kelvin     Unit = "K"
)

// Dimension is the physical dimension a unit measures.
type Dimension string

const (
	Length      Dimension = "length"
	Temperature Dimension = "temperature"
)

// ConversionError reports an unconvertible unit pair: either a unit is
// not registered or the two units measure different dimensions.
type ConversionError struct {
	From   Unit
	To     Unit
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %s", e.From, e.To, e.Reason)
}

// definition maps a unit onto its dimension's base unit:
// base = value*scale + offset.
type definition struct {
	dimension Dimension
	scale     float64
	offset    float64
}

var registry = map[Unit]definition{
	Inch:       {Length, 0.0254, 0},
	Foot:       {Length, 0.3048, 0},
	Millimeter: {Length, 0.001, 0},
	Meter:      {Length, 1, 0},
	Fahrenheit: {Temperature, 5.0 / 9.0, 273.15 - 32*5.0/9.0},
	Celsius:    {Temperature, 1, 273.15},
	Kelvin:     {Temperature, 1, 0},
}

// Converter converts values between registered units. The zero value is
// ready to use; NewConverter exists for symmetry with remote-backed
// implementations of the same contract.
type Converter struct{}

// NewConverter returns a Converter backed by the built-in unit registry.
func NewConverter() *Converter {
	return &Converter{}
}

// Convert converts value from one unit to another. It fails with a
// ConversionError when either unit is unknown or the units are not
// dimensionally compatible. The context is part of the contract because
// a converter may resolve unit definitions remotely; the registry-backed
// implementation only honors cancellation.
func (c *Converter) Convert(ctx context.Context, value float64, from, to Unit) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fromDef, ok := registry[from]
	if !ok {
		return 0, &ConversionError{From: from, To: to, Reason: fmt.Sprintf("unknown unit %s", from)}
	}

	toDef, ok := registry[to]
	if !ok {
		return 0, &ConversionError{From: from, To: to, Reason: fmt.Sprintf("unknown unit %s", to)}
	}

	if fromDef.dimension != toDef.dimension {
		return 0, &ConversionError{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("%s and %s are not compatible", fromDef.dimension, toDef.dimension),
		}
	}

	base := value*fromDef.scale + fromDef.offset
	return (base - toDef.offset) / toDef.scale, nil
}

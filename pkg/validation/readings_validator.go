package validation

import (
	"math"

	apperrors "go-rivermind/internal/errors"
)

// ReadingBounds defines the accepted range of externally supplied readings
type ReadingBounds struct {
	MinTemperature float64
	MaxTemperature float64

	MinPH float64
	MaxPH float64

	MinFlow float64
	MaxFlow float64

	MinDissolvedOxygen float64
	MaxDissolvedOxygen float64
}

// DefaultReadingBounds covers anything a river sensor could plausibly report
func DefaultReadingBounds() ReadingBounds {
	return ReadingBounds{
		MinTemperature:     -10,
		MaxTemperature:     60,
		MinPH:              0,
		MaxPH:              14,
		MinFlow:            0,
		MaxFlow:            10000,
		MinDissolvedOxygen: 0,
		MaxDissolvedOxygen: 50,
	}
}

// ReadingsValidator checks readings submitted for classification
type ReadingsValidator struct {
	bounds ReadingBounds
}

// NewReadingsValidator creates a validator with default bounds
func NewReadingsValidator() *ReadingsValidator {
	return &ReadingsValidator{bounds: DefaultReadingBounds()}
}

// NewReadingsValidatorWithBounds creates a validator with custom bounds
func NewReadingsValidatorWithBounds(bounds ReadingBounds) *ReadingsValidator {
	return &ReadingsValidator{bounds: bounds}
}

// Validate returns a validation error naming the first reading out of range
func (v *ReadingsValidator) Validate(temperature, ph, flow, dissolvedOxygen float64) error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"temperature", temperature, v.bounds.MinTemperature, v.bounds.MaxTemperature},
		{"ph", ph, v.bounds.MinPH, v.bounds.MaxPH},
		{"flow", flow, v.bounds.MinFlow, v.bounds.MaxFlow},
		{"dissolved_oxygen", dissolvedOxygen, v.bounds.MinDissolvedOxygen, v.bounds.MaxDissolvedOxygen},
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return apperrors.NewValidationError("Reading must be a finite number", nil).WithDetails("%s", c.name)
		}
		if c.value < c.min || c.value > c.max {
			return apperrors.NewValidationError("Reading out of range", nil).
				WithDetails("%s=%g outside [%g, %g]", c.name, c.value, c.min, c.max)
		}
	}
	return nil
}

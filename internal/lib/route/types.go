package route

import (
	"time"

	"github.com/ridewise/navcore/internal/lib/geo"
)

// Step is one leg of a route with its own polyline and instruction.
type Step struct {
	// Polyline is the ordered coordinate path of the step. Steps with
	// fewer than two points are treated as zero-length.
	Polyline []geo.Point `json:"polyline"`
	// Distance is the provider-reported step length in meters.
	Distance float64 `json:"distance"`
	// Duration is the expected traversal time for the step.
	Duration time.Duration `json:"duration"`
	// Instruction is free-text maneuver guidance. May be empty.
	Instruction string `json:"instruction"`
}

// Geometry is an immutable ordered sequence of steps describing a route.
// Steps are contiguous: the end of step i coincides with the start of
// step i+1. Owned exclusively by the planning session that requested it;
// never mutated after construction.
type Geometry struct {
	Steps []Step `json:"steps"`
}

// PositionSample is a single observation from the location/motion
// collaborator. Immutable value.
type PositionSample struct {
	Coordinate geo.Point `json:"coordinate"`
	// HorizontalAccuracy is the estimated position error radius in meters.
	HorizontalAccuracy float64 `json:"horizontal_accuracy"`
	// Speed is instantaneous speed in m/s. Negative means unavailable.
	Speed float64 `json:"speed"`
	// Course is heading in degrees from true north. Negative means
	// unavailable.
	Course    float64   `json:"course"`
	Timestamp time.Time `json:"timestamp"`
	// Roughness is a unitless RMS vibration estimate, >= 0.
	Roughness float64 `json:"roughness"`
}

// HasSpeed reports whether the sample carries a usable speed reading.
func (s PositionSample) HasSpeed() bool {
	return s.Speed >= 0
}

package route

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/ridewise/navcore/internal/lib/geo"
)

// StepLength returns the step's length in meters, preferring the
// provider-reported distance and falling back to polyline geometry.
func (s Step) StepLength() float64 {
	if s.Distance > 0 {
		return s.Distance
	}
	return geo.PathLength(s.Polyline)
}

// IsZeroLength reports whether the step carries projectable geometry.
func (s Step) IsZeroLength() bool {
	return len(s.Polyline) < 2
}

// TotalDistance returns the route length in meters.
func (g Geometry) TotalDistance() float64 {
	total := 0.0
	for _, step := range g.Steps {
		total += step.StepLength()
	}
	return total
}

// TotalDuration returns the expected traversal time for the whole route.
func (g Geometry) TotalDuration() time.Duration {
	var total time.Duration
	for _, step := range g.Steps {
		total += step.Duration
	}
	return total
}

// FlatPolyline concatenates all step polylines into a single path,
// dropping duplicated step-boundary points.
func (g Geometry) FlatPolyline() []geo.Point {
	var flat []geo.Point
	for _, step := range g.Steps {
		for _, p := range step.Polyline {
			if len(flat) > 0 && flat[len(flat)-1] == p {
				continue
			}
			flat = append(flat, p)
		}
	}
	return flat
}

// Destination returns the final coordinate of the route. ok is false for
// routes with no projectable geometry.
func (g Geometry) Destination() (geo.Point, bool) {
	for i := len(g.Steps) - 1; i >= 0; i-- {
		poly := g.Steps[i].Polyline
		if len(poly) > 0 {
			return poly[len(poly)-1], true
		}
	}
	return geo.Point{}, false
}

// Fingerprint returns a stable identity for the route's geometry. Derived
// from the endpoints, step count, and total length so that refetches of
// the same physical route produce the same fingerprint even when provider
// metadata differs.
func (g Geometry) Fingerprint() uint64 {
	h := fnv.New64a()
	flat := g.FlatPolyline()
	if len(flat) > 0 {
		first := flat[0]
		last := flat[len(flat)-1]
		// Round to ~11m of latitude so GPS-precision jitter between
		// refetches does not change the identity.
		fmt.Fprintf(h, "%.4f,%.4f|%.4f,%.4f", first.Latitude, first.Longitude, last.Latitude, last.Longitude)
	}
	fmt.Fprintf(h, "|%d|%.0f", len(g.Steps), g.TotalDistance())
	return h.Sum64()
}

// StepID is a stable identifier for one step of a route, valid across
// refetches of the same physical route.
type StepID struct {
	RouteFingerprint uint64 `json:"route_fingerprint"`
	Index            int    `json:"index"`
}

// StepIDFor derives the StepID for a step index within a route.
func StepIDFor(g Geometry, index int) StepID {
	return StepID{RouteFingerprint: g.Fingerprint(), Index: index}
}

// String renders the StepID as a storage key.
func (id StepID) String() string {
	return fmt.Sprintf("%016x:%d", id.RouteFingerprint, id.Index)
}

// ParseStepID parses a storage key back into a StepID.
func ParseStepID(key string) (StepID, error) {
	var id StepID
	if _, err := fmt.Sscanf(key, "%16x:%d", &id.RouteFingerprint, &id.Index); err != nil {
		return StepID{}, fmt.Errorf("malformed step id %q: %w", key, err)
	}
	return id, nil
}

// EncodedStep is a step as delivered by a directions provider, with its
// polyline still in encoded form.
type EncodedStep struct {
	EncodedPolyline string
	Distance        float64
	Duration        time.Duration
	Instruction     string
}

// NewGeometry decodes provider steps into an immutable route Geometry.
func NewGeometry(steps []EncodedStep) (Geometry, error) {
	out := Geometry{Steps: make([]Step, 0, len(steps))}
	for i, es := range steps {
		points, err := geo.DecodePolyline(es.EncodedPolyline)
		if err != nil {
			return Geometry{}, fmt.Errorf("step %d: %w", i, err)
		}
		out.Steps = append(out.Steps, Step{
			Polyline:    points,
			Distance:    es.Distance,
			Duration:    es.Duration,
			Instruction: es.Instruction,
		})
	}
	return out, nil
}

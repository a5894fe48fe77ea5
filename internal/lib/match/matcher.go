// Package match snaps raw position samples onto route geometry.
package match

import (
	"math"
	"time"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/route"
)

// Quality buckets a match confidence for consumers that want coarse
// reliability signals rather than raw numbers.
type Quality string

const (
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

// Result describes a position snapped onto a route. Produced fresh on every
// Match call and never mutated afterwards.
type Result struct {
	// StepIndex is the matched step, clamped to route bounds.
	StepIndex int
	// Progress is the fraction of the matched step already traversed,
	// clamped to [0,1].
	Progress float64
	// DistanceToNext is the remaining distance in the matched step,
	// in meters.
	DistanceToNext float64
	// Snapped is the projected coordinate on the route.
	Snapped geo.Point
	// Confidence is 1 at zero distance, falling linearly to 0 at the
	// search radius.
	Confidence float64
	Quality    Quality
	// SmoothedSpeed is the caller-smoothed speed carried through for
	// downstream consumers, m/s. Negative when unavailable.
	SmoothedSpeed float64
	// Timestamp is the source sample's timestamp.
	Timestamp time.Time
}

// Matcher projects position samples onto route steps. It holds only
// immutable configuration and is safe for concurrent use.
type Matcher struct {
	searchRadius float64
}

// NewMatcher creates a Matcher with the given configuration.
func NewMatcher(cfg config.MatcherConfig) *Matcher {
	radius := cfg.SearchRadius
	if radius <= 0 {
		radius = config.DefaultConfig().Matcher.SearchRadius
	}
	return &Matcher{searchRadius: radius}
}

// Match projects a sample onto the route and returns the best step match.
// smoothedSpeed is the caller's smoothed speed estimate; pass the raw sample
// speed when no smoothing is in place. Returns nil only when the route has
// no projectable steps. Deterministic for identical inputs.
func (m *Matcher) Match(g route.Geometry, sample route.PositionSample, smoothedSpeed float64) *Result {
	bestDist := math.Inf(1)
	bestStep := -1
	var bestProj geo.PathProjection
	var bestLen float64

	for i, step := range g.Steps {
		// Steps without projectable geometry are skipped.
		if step.IsZeroLength() {
			continue
		}
		proj, ok := geo.ProjectOntoPath(sample.Coordinate, step.Polyline)
		if !ok {
			continue
		}
		if proj.Distance < bestDist {
			bestDist = proj.Distance
			bestStep = i
			bestProj = proj
			bestLen = geo.PathLength(step.Polyline)
		}
	}

	if bestStep < 0 {
		return nil
	}

	progress := 0.0
	remaining := 0.0
	if bestLen > 0 {
		progress = math.Max(0, math.Min(1, bestProj.TraversedMeters/bestLen))
		remaining = math.Max(0, bestLen-bestProj.TraversedMeters)
	}

	confidence := 1 - bestDist/m.searchRadius
	confidence = math.Max(0, math.Min(1, confidence))

	return &Result{
		StepIndex:      bestStep,
		Progress:       progress,
		DistanceToNext: remaining,
		Snapped:        bestProj.Point,
		Confidence:     confidence,
		Quality:        qualityFor(confidence),
		SmoothedSpeed:  smoothedSpeed,
		Timestamp:      sample.Timestamp,
	}
}

func qualityFor(confidence float64) Quality {
	switch {
	case confidence >= 0.85:
		return QualityExcellent
	case confidence >= 0.60:
		return QualityGood
	case confidence >= 0.35:
		return QualityFair
	default:
		return QualityPoor
	}
}

// SpeedSmoother maintains a short moving window of speed readings for the
// session layer. Match itself is stateless; smoothing lives with the caller
// that owns the sample stream.
type SpeedSmoother struct {
	window []float64
	size   int
}

// NewSpeedSmoother creates a smoother over the given window size.
func NewSpeedSmoother(size int) *SpeedSmoother {
	if size < 1 {
		size = 5
	}
	return &SpeedSmoother{size: size}
}

// Smooth records a speed reading and returns the windowed average. Unknown
// (negative) readings leave the window untouched and return the current
// estimate, or -1 when nothing has been observed yet.
func (s *SpeedSmoother) Smooth(speed float64) float64 {
	if speed >= 0 {
		s.window = append(s.window, speed)
		if len(s.window) > s.size {
			s.window = s.window[len(s.window)-s.size:]
		}
	}
	if len(s.window) == 0 {
		return -1
	}
	sum := 0.0
	for _, v := range s.window {
		sum += v
	}
	return sum / float64(len(s.window))
}

// Reset clears the smoothing window.
func (s *SpeedSmoother) Reset() {
	s.window = s.window[:0]
}

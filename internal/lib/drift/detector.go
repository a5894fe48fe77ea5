// Package drift decides whether a rider has left the active route corridor.
package drift

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/route"
)

// RerouteFunc is invoked when a reroute should be requested, with the
// coordinate the rider drifted to.
type RerouteFunc func(from geo.Point)

// Status reports the outcome of one drift evaluation.
type Status struct {
	// Evaluated is false when the sample was skipped (poor accuracy, no
	// route, or unusable geometry).
	Evaluated bool
	// OffRoute reflects the session flag after this evaluation.
	OffRoute bool
	// Distance is the computed distance to the route in meters.
	Distance float64
	// Threshold is the dynamic threshold the distance was compared to.
	Threshold float64
	// RerouteTriggered is true when the reroute callback fired.
	RerouteTriggered bool
}

// Detector is a single-owner session object that watches a stream of
// position samples for corridor departure. Hysteresis comes from the
// threshold plus a reroute cooldown; the off-route flag itself flips
// immediately so UI can reflect drift even while reroute requests are
// suppressed.
type Detector struct {
	cfg    config.DriftConfig
	logger *zap.SugaredLogger
	clock  func() time.Time

	mu           sync.Mutex
	monitoring   bool
	corridor     []geo.Point
	onReroute    RerouteFunc
	offRoute     bool
	lastDistance float64
	lastReroute  time.Time
}

// NewDetector creates an idle Detector. clock may be nil for wall time.
func NewDetector(cfg config.DriftConfig, logger *zap.SugaredLogger, clock func() time.Time) *Detector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.BaseThreshold <= 0 {
		cfg = config.DefaultConfig().Drift
	}
	return &Detector{cfg: cfg, logger: logger, clock: clock, lastDistance: math.Inf(1)}
}

// StartMonitoring installs the active route and reroute callback, moving the
// session from idle to monitoring.
func (d *Detector) StartMonitoring(g route.Geometry, onReroute RerouteFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.monitoring = true
	d.corridor = d.prepareCorridor(g)
	d.onReroute = onReroute
	d.offRoute = false
	d.lastDistance = math.Inf(1)
	d.lastReroute = time.Time{}

	d.logger.Infow("drift monitoring started", "corridor_vertices", len(d.corridor))
}

// UpdateRoute swaps in a replacement route. Cooldown and off-route state are
// preserved; the next evaluation self-corrects.
func (d *Detector) UpdateRoute(g route.Geometry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.monitoring {
		return
	}
	d.corridor = d.prepareCorridor(g)
	d.logger.Infow("drift corridor updated", "corridor_vertices", len(d.corridor))
}

// StopMonitoring clears all session state and returns the session to idle.
// A reroute callback already dispatched is allowed to complete.
func (d *Detector) StopMonitoring() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.monitoring = false
	d.corridor = nil
	d.onReroute = nil
	d.offRoute = false
	d.lastDistance = math.Inf(1)
	d.lastReroute = time.Time{}

	d.logger.Infow("drift monitoring stopped")
}

// Evaluate processes one position sample. Samples with unusable accuracy are
// skipped without any state change. Malformed corridors never trigger: the
// distance reads as infinite and evaluation is conservatively skipped.
func (d *Detector) Evaluate(sample route.PositionSample) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.monitoring {
		return Status{}
	}
	if sample.HorizontalAccuracy <= 0 || sample.HorizontalAccuracy > d.cfg.AccuracyCeiling {
		return Status{}
	}
	if len(d.corridor) < 2 {
		return Status{}
	}

	distance := geo.MinDistanceToPath(sample.Coordinate, d.corridor)
	if math.IsInf(distance, 1) {
		return Status{}
	}
	d.lastDistance = distance

	threshold := d.dynamicThreshold(sample)

	status := Status{Evaluated: true, Distance: distance, Threshold: threshold}

	if distance <= threshold {
		d.offRoute = false
		status.OffRoute = false
		return status
	}

	// Off route. The flag flips immediately; the reroute request is
	// additionally gated by the cooldown to prevent thrash.
	if !d.offRoute {
		d.logger.Warnw("rider off route", "distance_m", distance, "threshold_m", threshold)
	}
	d.offRoute = true
	status.OffRoute = true

	now := d.clock()
	if d.lastReroute.IsZero() || now.Sub(d.lastReroute) >= d.cfg.RerouteCooldown {
		d.lastReroute = now
		status.RerouteTriggered = true
		if cb := d.onReroute; cb != nil {
			cb(sample.Coordinate)
		}
	}

	return status
}

// IsOffRoute reports the current off-route flag.
func (d *Detector) IsOffRoute() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offRoute
}

// LastDistance returns the most recently computed distance to the route.
// Infinite until a sample has been evaluated.
func (d *Detector) LastDistance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastDistance
}

// dynamicThreshold widens the corridor for imprecise fixes and tightens it
// at speed, flooring at the configured minimum.
func (d *Detector) dynamicThreshold(sample route.PositionSample) float64 {
	threshold := d.cfg.BaseThreshold

	cushion := d.cfg.AccuracyCushionRate * sample.HorizontalAccuracy
	if cushion > d.cfg.AccuracyCushionMax {
		cushion = d.cfg.AccuracyCushionMax
	}
	threshold += cushion

	if sample.HasSpeed() && sample.Speed >= d.cfg.SpeedCutoff {
		threshold -= d.cfg.SpeedTightening
	}

	if threshold < d.cfg.MinThreshold {
		threshold = d.cfg.MinThreshold
	}
	return threshold
}

// prepareCorridor flattens the route into a single polyline and bounds its
// vertex count so repeated projection stays cheap on pathological inputs.
// The first and last points are always retained.
func (d *Detector) prepareCorridor(g route.Geometry) []geo.Point {
	flat := g.FlatPolyline()
	maxVertices := d.cfg.MaxPolylineVertices
	if maxVertices < 2 {
		maxVertices = config.DefaultConfig().Drift.MaxPolylineVertices
	}
	if len(flat) > maxVertices {
		d.logger.Debugw("subsampling oversized corridor",
			"vertices", len(flat), "budget", maxVertices)
		flat = geo.Subsample(flat, maxVertices)
	}
	return flat
}

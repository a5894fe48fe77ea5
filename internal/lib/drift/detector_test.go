package drift

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/route"
)

const metersPerDegree = 6371000 * math.Pi / 180

// eastWestRoute runs ~500m east along the equator.
func eastWestRoute() route.Geometry {
	return route.Geometry{Steps: []route.Step{
		{
			Polyline: []geo.Point{
				{Latitude: 0, Longitude: 0},
				{Latitude: 0, Longitude: 500 / metersPerDegree},
			},
			Instruction: "Continue straight",
		},
	}}
}

// sampleOffRoute builds a sample the given meters north of the route.
func sampleOffRoute(northMeters, accuracy, speed float64, at time.Time) route.PositionSample {
	return route.PositionSample{
		Coordinate:         geo.Point{Latitude: northMeters / metersPerDegree, Longitude: 250 / metersPerDegree},
		HorizontalAccuracy: accuracy,
		Speed:              speed,
		Timestamp:          at,
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDetector(t *testing.T) (*Detector, *fakeClock, *int) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	reroutes := 0
	d := NewDetector(config.DefaultConfig().Drift, nil, clock.Now)
	d.StartMonitoring(eastWestRoute(), func(geo.Point) { reroutes++ })
	return d, clock, &reroutes
}

func TestThresholdHysteresis(t *testing.T) {
	d, clock, reroutes := newTestDetector(t)

	// Accuracy 10 adds a 2.5m cushion: threshold is 42.5m with no speed
	// tightening.
	st := d.Evaluate(sampleOffRoute(42, 10, -1, clock.now))
	require.True(t, st.Evaluated)
	assert.InDelta(t, 42.5, st.Threshold, 1e-9)
	assert.False(t, st.OffRoute)
	assert.False(t, d.IsOffRoute())
	assert.Equal(t, 0, *reroutes)

	// Just past the threshold flips the flag and fires the callback.
	st = d.Evaluate(sampleOffRoute(43.5, 10, -1, clock.now))
	require.True(t, st.Evaluated)
	assert.True(t, st.OffRoute)
	assert.True(t, st.RerouteTriggered)
	assert.True(t, d.IsOffRoute())
	assert.Equal(t, 1, *reroutes)

	// Coming back inside clears the flag immediately.
	st = d.Evaluate(sampleOffRoute(5, 10, -1, clock.now))
	assert.False(t, st.OffRoute)
	assert.False(t, d.IsOffRoute())
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	d := NewDetector(config.DriftConfig{}, nil, clock.Now)
	d.StartMonitoring(eastWestRoute(), nil)

	// Default thresholds apply rather than everything reading as zero:
	// accuracy 10 gives 40 + 2.5 = 42.5m.
	st := d.Evaluate(sampleOffRoute(20, 10, -1, clock.now))
	require.True(t, st.Evaluated)
	assert.InDelta(t, 42.5, st.Threshold, 1e-9)
	assert.False(t, st.OffRoute)
}

func TestRerouteCooldown(t *testing.T) {
	d, clock, reroutes := newTestDetector(t)

	off := sampleOffRoute(200, 10, -1, clock.now)

	// Repeated off-route samples inside the cooldown trigger the callback
	// exactly once, though the flag stays raised.
	for i := 0; i < 5; i++ {
		st := d.Evaluate(off)
		assert.True(t, st.OffRoute)
		clock.Advance(2 * time.Second)
	}
	assert.Equal(t, 1, *reroutes)

	// After the cooldown the next off-route sample triggers again.
	clock.Advance(25 * time.Second)
	st := d.Evaluate(off)
	assert.True(t, st.RerouteTriggered)
	assert.Equal(t, 2, *reroutes)
}

func TestSpeedTightening(t *testing.T) {
	d, clock, _ := newTestDetector(t)

	// At 6 m/s (above the 18 km/h cutoff) the threshold drops by 8m:
	// 40 + 2.5 - 8 = 34.5.
	st := d.Evaluate(sampleOffRoute(36, 10, 6, clock.now))
	require.True(t, st.Evaluated)
	assert.InDelta(t, 34.5, st.Threshold, 1e-9)
	assert.True(t, st.OffRoute)

	// Below the cutoff the same position is tolerated.
	st = d.Evaluate(sampleOffRoute(36, 10, 2, clock.now))
	assert.InDelta(t, 42.5, st.Threshold, 1e-9)
	assert.False(t, st.OffRoute)
}

func TestThresholdFloor(t *testing.T) {
	cfg := config.DefaultConfig().Drift
	cfg.BaseThreshold = 12
	d := NewDetector(cfg, nil, nil)
	d.StartMonitoring(eastWestRoute(), nil)

	st := d.Evaluate(sampleOffRoute(11, 4, 6, time.Now()))
	require.True(t, st.Evaluated)
	// 12 + 1 - 8 would be 5; the floor holds at 10.
	assert.InDelta(t, 10.0, st.Threshold, 1e-9)
}

func TestPoorAccuracySkipped(t *testing.T) {
	d, clock, reroutes := newTestDetector(t)

	st := d.Evaluate(sampleOffRoute(500, 80, -1, clock.now))
	assert.False(t, st.Evaluated)
	assert.False(t, d.IsOffRoute())
	assert.Equal(t, 0, *reroutes)

	// Non-positive accuracy is equally unusable.
	st = d.Evaluate(sampleOffRoute(500, 0, -1, clock.now))
	assert.False(t, st.Evaluated)
}

func TestMalformedRouteNeverTriggers(t *testing.T) {
	d := NewDetector(config.DefaultConfig().Drift, nil, nil)
	reroutes := 0
	d.StartMonitoring(route.Geometry{}, func(geo.Point) { reroutes++ })

	st := d.Evaluate(sampleOffRoute(500, 10, -1, time.Now()))
	assert.False(t, st.Evaluated)
	assert.False(t, d.IsOffRoute())
	assert.Equal(t, 0, reroutes)
	assert.True(t, math.IsInf(d.LastDistance(), 1))
}

func TestUpdateRoutePreservesCooldown(t *testing.T) {
	d, clock, reroutes := newTestDetector(t)

	d.Evaluate(sampleOffRoute(200, 10, -1, clock.now))
	require.Equal(t, 1, *reroutes)
	require.True(t, d.IsOffRoute())

	// Swapping the route keeps the off-route flag and the cooldown; an
	// immediate off-route sample does not re-trigger.
	d.UpdateRoute(eastWestRoute())
	assert.True(t, d.IsOffRoute())
	st := d.Evaluate(sampleOffRoute(200, 10, -1, clock.now))
	assert.True(t, st.OffRoute)
	assert.False(t, st.RerouteTriggered)
	assert.Equal(t, 1, *reroutes)
}

func TestStopMonitoringClearsState(t *testing.T) {
	d, clock, _ := newTestDetector(t)

	d.Evaluate(sampleOffRoute(200, 10, -1, clock.now))
	require.True(t, d.IsOffRoute())

	d.StopMonitoring()
	assert.False(t, d.IsOffRoute())
	assert.True(t, math.IsInf(d.LastDistance(), 1))

	// Idle sessions ignore samples entirely.
	st := d.Evaluate(sampleOffRoute(200, 10, -1, clock.now))
	assert.False(t, st.Evaluated)
}

func TestOversizedCorridorSubsampled(t *testing.T) {
	cfg := config.DefaultConfig().Drift
	cfg.MaxPolylineVertices = 64

	// A dense 5000-vertex route along the equator.
	points := make([]geo.Point, 5000)
	for i := range points {
		points[i] = geo.Point{Latitude: 0, Longitude: float64(i) / metersPerDegree}
	}
	g := route.Geometry{Steps: []route.Step{{Polyline: points, Instruction: "Continue"}}}

	d := NewDetector(cfg, nil, nil)
	d.StartMonitoring(g, nil)

	// Detection still works against the subsampled corridor.
	s := route.PositionSample{
		Coordinate:         geo.Point{Latitude: 15 / metersPerDegree, Longitude: 2500 / metersPerDegree},
		HorizontalAccuracy: 10,
		Speed:              -1,
		Timestamp:          time.Now(),
	}
	st := d.Evaluate(s)
	require.True(t, st.Evaluated)
	assert.InDelta(t, 15.0, st.Distance, 1.0)
	assert.False(t, st.OffRoute)
}

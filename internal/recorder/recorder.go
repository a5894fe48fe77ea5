// Package recorder aggregates live ride measurements into the segment store.
package recorder

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ridewise/navcore/internal/lib/match"
	"github.com/ridewise/navcore/internal/lib/route"
	"github.com/ridewise/navcore/internal/lib/score"
	"github.com/ridewise/navcore/internal/segment"
)

// Recorder is a single-owner session object that accumulates per-step
// roughness samples during a ride and writes scored quality into the
// segment store as steps complete.
type Recorder struct {
	store  *segment.Store
	mode   score.Mode
	skill  score.Skill
	logger *zap.SugaredLogger
	clock  func() time.Time

	rideID    uuid.UUID
	geometry  route.Geometry
	active    bool
	roughness map[int][]float64
	smoother  *match.SpeedSmoother
	lastStep  int
}

// New creates a Recorder writing into the given store. clock may be nil for
// wall time.
func New(store *segment.Store, mode score.Mode, skill score.Skill, logger *zap.SugaredLogger, clock func() time.Time) *Recorder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		store:    store,
		mode:     mode,
		skill:    skill,
		logger:   logger,
		clock:    clock,
		smoother: match.NewSpeedSmoother(5),
	}
}

// StartRide begins accumulating against a route and returns the ride's
// identifier. Any in-progress ride is flushed first.
func (r *Recorder) StartRide(g route.Geometry) uuid.UUID {
	if r.active {
		r.FinishRide()
	}

	r.rideID = uuid.New()
	r.geometry = g
	r.active = true
	r.roughness = make(map[int][]float64)
	r.smoother.Reset()
	r.lastStep = -1

	r.logger.Infow("ride started", "ride_id", r.rideID, "steps", len(g.Steps))
	return r.rideID
}

// Observe records one sample against its matched step and returns the
// smoothed speed for downstream consumers. Samples with a poor match are
// counted for speed smoothing only.
func (r *Recorder) Observe(sample route.PositionSample, matched *match.Result) float64 {
	smoothed := r.smoother.Smooth(sample.Speed)
	if !r.active || matched == nil {
		return smoothed
	}
	if matched.Quality == match.QualityPoor {
		return smoothed
	}

	step := matched.StepIndex
	if sample.Roughness >= 0 {
		r.roughness[step] = append(r.roughness[step], sample.Roughness)
	}

	// Steps behind the matched one are complete; score and persist them.
	if step > r.lastStep {
		for idx := range r.roughness {
			if idx < step {
				r.flushStep(idx)
			}
		}
		r.lastStep = step
	}

	return smoothed
}

// SmoothedSpeed returns the current speed estimate, or -1 before any
// reading.
func (r *Recorder) SmoothedSpeed() float64 {
	return r.smoother.Smooth(-1)
}

// FinishRide flushes all remaining step measurements and ends the ride.
func (r *Recorder) FinishRide() {
	if !r.active {
		return
	}

	steps := make([]int, 0, len(r.roughness))
	for idx := range r.roughness {
		steps = append(steps, idx)
	}
	sort.Ints(steps)
	for _, idx := range steps {
		r.flushStep(idx)
	}

	r.logger.Infow("ride finished", "ride_id", r.rideID)
	r.active = false
	r.roughness = nil
}

// flushStep aggregates a step's roughness samples into an RMS measurement,
// scores it, and writes the result to the segment store.
func (r *Recorder) flushStep(idx int) {
	samples := r.roughness[idx]
	delete(r.roughness, idx)
	if len(samples) == 0 {
		return
	}

	squares := make([]float64, len(samples))
	for i, v := range samples {
		squares[i] = v * v
	}
	rms := math.Sqrt(stat.Mean(squares, nil))

	quality, _ := score.Score(rms, 0, r.mode, r.skill)
	id := route.StepIDFor(r.geometry, idx)
	r.store.Write(id, quality, rms)

	r.logger.Debugw("step measurement recorded",
		"ride_id", r.rideID, "step", idx, "samples", len(samples),
		"roughness_rms", rms, "quality", quality)
}

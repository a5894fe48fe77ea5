// Package cue emits tiered proximity announcements for upcoming maneuvers.
package cue

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/match"
	"github.com/ridewise/navcore/internal/lib/route"
)

// Tier is the urgency bucket for a cue. Strictly ordered.
type Tier int

const (
	TierFar Tier = iota
	TierNear
	TierNow
	TierArrived
)

// String returns the tier's wire name.
func (t Tier) String() string {
	switch t {
	case TierFar:
		return "far"
	case TierNear:
		return "near"
	case TierNow:
		return "now"
	case TierArrived:
		return "arrived"
	default:
		return "unknown"
	}
}

// Cue is one proximity announcement. Consumed by the rendering, voice, and
// haptic collaborators; this package performs no output itself.
type Cue struct {
	StepIndex int
	Tier      Tier
	Text      string
	Icon      string
	// Distance is the estimated remaining distance to the maneuver,
	// meters. Zero for arrival cues.
	Distance float64
	// Speak and Haptic are eligibility flags, not commands.
	Speak     bool
	Haptic    bool
	Timestamp time.Time
}

// Engine is a single-owner session object that turns matched positions into
// at most one cue per evaluation, with anti-spam suppression.
type Engine struct {
	cfg    config.CueConfig
	logger *zap.SugaredLogger
	clock  func() time.Time

	geometry route.Geometry
	hasRoute bool

	lastStep         int
	lastTier         Tier
	lastAt           time.Time
	hasLast          bool
	arrivedAnnounced bool
}

// NewEngine creates an Engine with no active route. clock may be nil for
// wall time.
func NewEngine(cfg config.CueConfig, logger *zap.SugaredLogger, clock func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.LookaheadDefault <= 0 {
		// Zero-valued config reads as defaults. AllowRepeats is the one
		// field where zero is a deliberate setting, so it survives.
		repeats := cfg.AllowRepeats
		cfg = config.DefaultConfig().Cue
		cfg.AllowRepeats = repeats
	}
	return &Engine{cfg: cfg, logger: logger, clock: clock}
}

// SetRoute resets all cue memory for a new route and returns a synthetic
// far-tier start cue for UX continuity. Returns nil when the route has no
// instruction-bearing steps.
func (e *Engine) SetRoute(g route.Geometry) *Cue {
	e.Reset()
	e.geometry = g
	e.hasRoute = true

	target := firstInstructionStep(g.Steps, 0)
	if target < 0 {
		return nil
	}

	m := ParseManeuver(g.Steps[target].Instruction)
	c := &Cue{
		StepIndex: target,
		Tier:      TierFar,
		Text:      fmt.Sprintf("Head out: %s ahead", lowerFirst(m.Phrase)),
		Icon:      m.Icon,
		Distance:  distanceToStep(g.Steps, 0, 0, target),
		Timestamp: e.clock(),
	}
	// Synthetic cue: deliberately not remembered, so the first real far
	// cue for the same step is not suppressed as a duplicate.
	return c
}

// Reset clears all cue memory.
func (e *Engine) Reset() {
	e.geometry = route.Geometry{}
	e.hasRoute = false
	e.hasLast = false
	e.lastStep = 0
	e.lastTier = TierFar
	e.lastAt = time.Time{}
	e.arrivedAnnounced = false
}

// Evaluate classifies a sample against the next maneuver and returns a cue,
// or nil when nothing should be announced. matched may be nil, in which case
// the engine falls back to pure geometry.
func (e *Engine) Evaluate(sample route.PositionSample, matched *match.Result) *Cue {
	if !e.hasRoute || len(e.geometry.Steps) == 0 {
		return nil
	}

	// Arrival wins over any maneuver cue and is announced once.
	if dest, ok := e.geometry.Destination(); ok {
		if geo.Haversine(sample.Coordinate, dest) <= e.cfg.ArrivalRadius {
			if e.arrivedAnnounced {
				return nil
			}
			e.arrivedAnnounced = true
			c := &Cue{
				StepIndex: len(e.geometry.Steps) - 1,
				Tier:      TierArrived,
				Text:      "You have arrived",
				Icon:      "arrive",
				Speak:     true,
				Haptic:    true,
				Timestamp: e.clock(),
			}
			e.remember(c)
			e.logger.Infow("arrival announced")
			return c
		}
	}

	target, remaining := e.nextManeuver(sample, matched)
	if target < 0 {
		return nil
	}

	lookahead := e.lookahead(sample, matched)
	far := math.Max(lookahead, e.cfg.FarMin)
	near := math.Max(far*e.cfg.NearFraction, e.cfg.NearMin)
	now := math.Max(far*e.cfg.NowFraction, e.cfg.NowMin)

	var tier Tier
	switch {
	case remaining <= now:
		tier = TierNow
	case remaining <= near:
		tier = TierNear
	case remaining <= far:
		tier = TierFar
	default:
		return nil
	}

	if e.suppressed(target, tier) {
		return nil
	}

	m := ParseManeuver(e.geometry.Steps[target].Instruction)
	c := &Cue{
		StepIndex: target,
		Tier:      tier,
		Text:      cueText(m, tier, remaining),
		Icon:      m.Icon,
		Distance:  remaining,
		Speak:     tier >= TierNear,
		Haptic:    tier >= TierNow,
		Timestamp: e.clock(),
	}
	e.remember(c)
	return c
}

// nextManeuver resolves the upcoming instruction-bearing step and the
// remaining distance to its start.
func (e *Engine) nextManeuver(sample route.PositionSample, matched *match.Result) (int, float64) {
	steps := e.geometry.Steps

	if matched != nil {
		remaining := matched.DistanceToNext
		target := firstInstructionStep(steps, matched.StepIndex+1)
		if target >= 0 {
			remaining += distanceToStep(steps, matched.StepIndex+1, 0, target)
		} else if matched.StepIndex < len(steps) && steps[matched.StepIndex].Instruction != "" {
			// No later instruction-bearing step: the current step's own
			// maneuver, at its end, is the final one.
			target = matched.StepIndex
		} else {
			return -1, 0
		}
		return target, remaining
	}

	// No match available: fall back to straight-line distance to the
	// first instruction-bearing step.
	target := firstInstructionStep(steps, 0)
	if target < 0 {
		return -1, 0
	}
	poly := steps[target].Polyline
	if len(poly) == 0 {
		return -1, 0
	}
	return target, geo.Haversine(sample.Coordinate, poly[0])
}

// lookahead converts speed into an announcement distance, clamped to the
// configured bounds, defaulting when speed is unknown.
func (e *Engine) lookahead(sample route.PositionSample, matched *match.Result) float64 {
	speed := sample.Speed
	if matched != nil && matched.SmoothedSpeed >= 0 {
		speed = matched.SmoothedSpeed
	}
	if speed < 0 {
		return e.cfg.LookaheadDefault
	}
	la := speed * e.cfg.LookaheadWindow.Seconds()
	return math.Max(e.cfg.LookaheadMin, math.Min(e.cfg.LookaheadMax, la))
}

// suppressed applies the anti-spam rules: a minimum interval between cues,
// and no repeat of the same step+tier unless repeats are allowed.
func (e *Engine) suppressed(step int, tier Tier) bool {
	if !e.hasLast {
		return false
	}
	if e.clock().Sub(e.lastAt) < e.cfg.MinCueInterval {
		return true
	}
	if !e.cfg.AllowRepeats && step == e.lastStep && tier == e.lastTier {
		return true
	}
	return false
}

func (e *Engine) remember(c *Cue) {
	e.hasLast = true
	e.lastStep = c.StepIndex
	e.lastTier = c.Tier
	e.lastAt = c.Timestamp
}

// firstInstructionStep returns the index of the first step at or after from
// with a non-empty instruction, or -1.
func firstInstructionStep(steps []route.Step, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(steps); i++ {
		if steps[i].Instruction != "" {
			return i
		}
	}
	return -1
}

// distanceToStep sums full step lengths from index from (offset by skip
// meters already traversed) up to but excluding target.
func distanceToStep(steps []route.Step, from int, skip float64, target int) float64 {
	total := -skip
	for i := from; i < target && i < len(steps); i++ {
		total += steps[i].StepLength()
	}
	if total < 0 {
		return 0
	}
	return total
}

func cueText(m Maneuver, tier Tier, remaining float64) string {
	switch tier {
	case TierNow:
		return fmt.Sprintf("%s now", m.Phrase)
	default:
		return fmt.Sprintf("In %s, %s", formatCueDistance(remaining), lowerFirst(m.Phrase))
	}
}

// formatCueDistance rounds to announcement-friendly increments.
func formatCueDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	if meters > 100 {
		return fmt.Sprintf("%d m", int(math.Round(meters/10))*10)
	}
	return fmt.Sprintf("%d m", int(math.Round(meters/5))*5)
}

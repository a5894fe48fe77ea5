// Package score turns roughness and slope measurements into normalized ride
// quality scores, grade labels, and presentation colors.
package score

import "math"

// RoughnessMax is the RMS vibration level that maps to a zero roughness
// factor. Measurements at or above it read as maximally rough.
const RoughnessMax = 3.5

// Mode selects the rider intent profile used to blend score factors.
type Mode string

const (
	// ModeRelaxed favors smooth surfaces and gentle grades.
	ModeRelaxed Mode = "relaxed"
	// ModeCommute balances surface quality against directness.
	ModeCommute Mode = "commute"
	// ModePerformance tolerates rough surfaces and steep grades.
	ModePerformance Mode = "performance"
)

// Skill adjusts scores for rider experience.
type Skill string

const (
	SkillBeginner     Skill = "beginner"
	SkillIntermediate Skill = "intermediate"
	SkillAdvanced     Skill = "advanced"
)

// modeProfile holds the per-mode blending parameters.
type modeProfile struct {
	// smoothnessWeight is the share of the blend given to the roughness
	// factor; the complement applies to slope.
	smoothnessWeight float64
	// gradeCapped enables the soft wall on steep slope penalties.
	gradeCapped bool
	// bias is a small additive adjustment, roughly within ±0.10.
	bias float64
}

var modeProfiles = map[Mode]modeProfile{
	ModeRelaxed:     {smoothnessWeight: 0.75, gradeCapped: true, bias: 0.05},
	ModeCommute:     {smoothnessWeight: 0.60, gradeCapped: true, bias: 0.00},
	ModePerformance: {smoothnessWeight: 0.45, gradeCapped: false, bias: -0.02},
}

var skillMultipliers = map[Skill]float64{
	SkillBeginner:     0.90,
	SkillIntermediate: 1.00,
	// Advanced intentionally pushes past 1.0 before the final clamp,
	// giving headroom over the mode bias.
	SkillAdvanced: 1.08,
}

// StepContext carries per-step attributes for step-level scoring.
type StepContext struct {
	// HasProtectedLane is true when the step runs on a protected or
	// painted lane.
	HasProtectedLane bool
	// TurnAngle is the upcoming turn angle in radians, 0 for straight.
	TurnAngle float64
	// HazardCount is the number of known hazards on the step.
	HazardCount int
}

// Breakdown decomposes a score into its factors for diagnostics. Recomputed
// per query, never persisted.
type Breakdown struct {
	RoughnessFactor float64 `json:"roughness_factor"`
	SlopeFactor     float64 `json:"slope_factor"`
	LaneBonus       float64 `json:"lane_bonus"`
	TurnPenalty     float64 `json:"turn_penalty"`
	HazardPenalty   float64 `json:"hazard_penalty"`
	ModeBias        float64 `json:"mode_bias"`
	SkillMultiplier float64 `json:"skill_multiplier"`
	FinalScore      float64 `json:"final_score"`
}

// Score computes a route-level quality score in [0,1] from a roughness RMS
// measurement and a normalized slope penalty. Pure function; identical
// inputs give identical results.
func Score(roughnessRMS, slopePenalty float64, mode Mode, skill Skill) (float64, Breakdown) {
	profile, ok := modeProfiles[mode]
	if !ok {
		profile = modeProfiles[ModeCommute]
	}
	multiplier, ok := skillMultipliers[skill]
	if !ok {
		multiplier = skillMultipliers[SkillIntermediate]
	}

	roughFactor := clamp01(1 - roughnessRMS/RoughnessMax)
	slopeFactor := clamp01(1 - clamp01(slopePenalty))

	w := profile.smoothnessWeight
	s := roughFactor*w + slopeFactor*(1-w)

	if profile.gradeCapped {
		s *= gradeSoftWall(clamp01(slopePenalty))
	}

	s = clamp01(s + profile.bias)
	s = clamp01(s * multiplier)

	return s, Breakdown{
		RoughnessFactor: roughFactor,
		SlopeFactor:     slopeFactor,
		ModeBias:        profile.bias,
		SkillMultiplier: multiplier,
		FinalScore:      s,
	}
}

// ScoreStep refines a route-level score with per-step context: lane bonus,
// turn penalty, and hazard penalty.
func ScoreStep(roughnessRMS, slopePenalty float64, mode Mode, skill Skill, ctx StepContext) (float64, Breakdown) {
	s, breakdown := Score(roughnessRMS, slopePenalty, mode, skill)

	laneBonus := 0.0
	if ctx.HasProtectedLane {
		laneBonus = 0.10
	}

	// Turn penalty scales with turn angle, up to 35% for a full U-turn.
	turnPenalty := 0.35 * math.Min(1, math.Abs(ctx.TurnAngle)/math.Pi)

	// Hazard penalty saturates: each additional hazard matters less.
	hazardPenalty := 0.0
	if ctx.HazardCount > 0 {
		hazardPenalty = 0.40 * (1 - 1/(1+float64(ctx.HazardCount)))
	}

	s = clamp01(s * (1 + laneBonus) * (1 - turnPenalty) * (1 - hazardPenalty))

	breakdown.LaneBonus = laneBonus
	breakdown.TurnPenalty = turnPenalty
	breakdown.HazardPenalty = hazardPenalty
	breakdown.FinalScore = s
	return s, breakdown
}

// gradeSoftWall scales the score down smoothly as the slope penalty climbs
// past 60% of range, bottoming out at a 25% reduction. Avoids a hard cliff
// at the grade cap.
func gradeSoftWall(slopePenalty float64) float64 {
	const wallStart = 0.6
	if slopePenalty <= wallStart {
		return 1
	}
	u := (slopePenalty - wallStart) / (1 - wallStart)
	return 1 - 0.25*smoothstep(u)
}

// smoothstep is the Hermite interpolation 3u^2 - 2u^3 on [0,1].
func smoothstep(u float64) float64 {
	u = clamp01(u)
	return u * u * (3 - 2*u)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Grade is a coarse quality tier derived from a score.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradePoor      Grade = "poor"
)

// GradeFor buckets a score into a grade tier.
func GradeFor(score float64) Grade {
	switch {
	case score >= 0.85:
		return GradeExcellent
	case score >= 0.60:
		return GradeGood
	default:
		return GradePoor
	}
}

// Label returns the product-facing string for a grade.
func (g Grade) Label() string {
	switch g {
	case GradeExcellent:
		return "Excellent surface"
	case GradeGood:
		return "Good surface"
	default:
		return "Rough surface"
	}
}

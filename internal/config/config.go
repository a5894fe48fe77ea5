package config

import "time"

// Config aggregates the tuning knobs for the navigation core. Instances are
// passed explicitly at construction time; there is no ambient global
// configuration and no environment lookup.
type Config struct {
	Matcher MatcherConfig `yaml:"matcher"`
	Drift   DriftConfig   `yaml:"drift"`
	Cue     CueConfig     `yaml:"cue"`
	Segment SegmentConfig `yaml:"segment"`
}

// MatcherConfig holds map-matching settings.
type MatcherConfig struct {
	// SearchRadius is the distance in meters at which match confidence
	// reaches zero.
	SearchRadius float64 `yaml:"search_radius"`
}

// DriftConfig holds off-route detection settings.
type DriftConfig struct {
	// AccuracyCeiling rejects samples whose horizontal accuracy exceeds
	// this many meters.
	AccuracyCeiling float64 `yaml:"accuracy_ceiling"`
	// BaseThreshold is the corridor half-width in meters before
	// accuracy and speed adjustments.
	BaseThreshold float64 `yaml:"base_threshold"`
	// AccuracyCushionMax caps the extra margin granted for imprecise
	// fixes, in meters.
	AccuracyCushionMax float64 `yaml:"accuracy_cushion_max"`
	// AccuracyCushionRate scales horizontal accuracy into cushion meters.
	AccuracyCushionRate float64 `yaml:"accuracy_cushion_rate"`
	// SpeedTightening is subtracted from the threshold at speed, meters.
	SpeedTightening float64 `yaml:"speed_tightening"`
	// SpeedCutoff is the speed in m/s at which tightening applies.
	SpeedCutoff float64 `yaml:"speed_cutoff"`
	// MinThreshold floors the dynamic threshold, meters.
	MinThreshold float64 `yaml:"min_threshold"`
	// RerouteCooldown is the minimum interval between reroute triggers.
	RerouteCooldown time.Duration `yaml:"reroute_cooldown"`
	// MaxPolylineVertices bounds the cached corridor polyline; oversized
	// routes are uniformly subsampled to this budget.
	MaxPolylineVertices int `yaml:"max_polyline_vertices"`
}

// CueConfig holds turn-cue settings.
type CueConfig struct {
	// ArrivalRadius is the distance in meters from the destination at
	// which the arrived cue fires.
	ArrivalRadius float64 `yaml:"arrival_radius"`
	// LookaheadWindow converts speed into lookahead distance.
	LookaheadWindow time.Duration `yaml:"lookahead_window"`
	// LookaheadMin / LookaheadMax bound the dynamic lookahead, meters.
	LookaheadMin float64 `yaml:"lookahead_min"`
	LookaheadMax float64 `yaml:"lookahead_max"`
	// LookaheadDefault applies when speed is unknown, meters.
	LookaheadDefault float64 `yaml:"lookahead_default"`
	// FarMin floors the far threshold, meters.
	FarMin float64 `yaml:"far_min"`
	// NearFraction and NowFraction derive the inner thresholds from far.
	NearFraction float64 `yaml:"near_fraction"`
	NearMin      float64 `yaml:"near_min"`
	NowFraction  float64 `yaml:"now_fraction"`
	NowMin       float64 `yaml:"now_min"`
	// MinCueInterval suppresses cues emitted too soon after the last one.
	MinCueInterval time.Duration `yaml:"min_cue_interval"`
	// AllowRepeats permits re-emitting the same step+tier combination.
	AllowRepeats bool `yaml:"allow_repeats"`
}

// SegmentConfig holds segment-store decay settings.
type SegmentConfig struct {
	// DecayGraceWindow is how long a record stays at full freshness.
	DecayGraceWindow time.Duration `yaml:"decay_grace_window"`
	// DecayPerDay is the freshness lost per day beyond the grace window.
	DecayPerDay float64 `yaml:"decay_per_day"`
}

// DefaultConfig returns the default tuning used in production.
func DefaultConfig() Config {
	return Config{
		Matcher: MatcherConfig{
			SearchRadius: 50,
		},
		Drift: DriftConfig{
			AccuracyCeiling:     65,
			BaseThreshold:       40,
			AccuracyCushionMax:  15,
			AccuracyCushionRate: 0.25,
			SpeedTightening:     8,
			SpeedCutoff:         5, // 18 km/h
			MinThreshold:        10,
			RerouteCooldown:     25 * time.Second,
			MaxPolylineVertices: 2048,
		},
		Cue: CueConfig{
			ArrivalRadius:    18,
			LookaheadWindow:  10 * time.Second,
			LookaheadMin:     80,
			LookaheadMax:     320,
			LookaheadDefault: 240,
			FarMin:           60,
			NearFraction:     0.35,
			NearMin:          25,
			NowFraction:      0.10,
			NowMin:           10,
			MinCueInterval:   4 * time.Second,
			AllowRepeats:     false,
		},
		Segment: SegmentConfig{
			DecayGraceWindow: 7 * 24 * time.Hour,
			DecayPerDay:      0.1,
		},
	}
}

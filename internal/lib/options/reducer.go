// Package options ranks candidate routes for presentation at planning time.
package options

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ridewise/navcore/internal/lib/route"
	"github.com/ridewise/navcore/internal/lib/score"
)

// Candidate is one route alternative under consideration.
type Candidate struct {
	ID       string
	Geometry route.Geometry
	// SlopePenalty is the provider-derived normalized climb penalty in
	// [0,1]; 0 when unknown.
	SlopePenalty float64
}

// Presentation is the ranked, labeled, colored result for one candidate.
type Presentation struct {
	Label        string      `json:"label"`
	Score        float64     `json:"score"`
	Grade        score.Grade `json:"grade"`
	DistanceText string      `json:"distance_text"`
	ETAText      string      `json:"eta_text"`
	Subtitle     string      `json:"subtitle"`
	// Color is a uniform paint hint for the whole route polyline.
	Color score.Color `json:"color"`
	// StepColors repeats the route color per step for cheap polyline
	// rendering. Not step-level scoring.
	StepColors []score.Color `json:"step_colors"`
}

// Units selects distance formatting.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// RoughnessSource supplies measured roughness for a route from past rides.
// Implementations return ok=false when no measurement exists.
type RoughnessSource interface {
	RouteRoughness(g route.Geometry) (rms float64, ok bool)
}

// Reducer ranks candidate sets. Stateless aside from its immutable
// collaborators; safe to call repeatedly.
type Reducer struct {
	roughness RoughnessSource
	units     Units
	palette   score.Palette
	logger    *zap.SugaredLogger
}

// NewReducer creates a Reducer. roughness may be nil, in which case all
// candidates score with the neutral planning-time roughness of zero.
func NewReducer(roughness RoughnessSource, units Units, palette score.Palette, logger *zap.SugaredLogger) *Reducer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reducer{roughness: roughness, units: units, palette: palette, logger: logger}
}

// Evaluate scores and labels every candidate. Empty input yields an empty
// map.
func (r *Reducer) Evaluate(candidates []Candidate, mode score.Mode, skill score.Skill) map[string]Presentation {
	out := make(map[string]Presentation, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	scores := make([]float64, len(candidates))
	fastestIdx := 0
	bestIdx := 0
	fastestETA := time.Duration(math.MaxInt64)
	bestScore := math.Inf(-1)

	for i, c := range candidates {
		// Planning-time roughness defaults to the neutral placeholder;
		// measured roughness from past rides overrides it.
		roughness := 0.0
		if r.roughness != nil {
			if rms, ok := r.roughness.RouteRoughness(c.Geometry); ok {
				roughness = rms
			}
		}

		s, _ := score.Score(roughness, c.SlopePenalty, mode, skill)
		scores[i] = s

		if eta := c.Geometry.TotalDuration(); eta < fastestETA {
			fastestETA = eta
			fastestIdx = i
		}
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}

	optionOrdinal := 0
	for i, c := range candidates {
		label := ""
		switch {
		case i == fastestIdx && i == bestIdx:
			label = "Best Route"
		case i == fastestIdx:
			label = "Fastest"
		case i == bestIdx:
			label = "Best Surface"
		default:
			label = fmt.Sprintf("Option %c", 'A'+rune(optionOrdinal))
			optionOrdinal++
		}

		grade := score.GradeFor(scores[i])
		distanceText := formatDistance(c.Geometry.TotalDistance(), r.units)
		etaText := formatETA(c.Geometry.TotalDuration())
		color := score.ColorFor(scores[i], r.palette)

		stepColors := make([]score.Color, len(c.Geometry.Steps))
		for j := range stepColors {
			stepColors[j] = color
		}

		out[c.ID] = Presentation{
			Label:        label,
			Score:        scores[i],
			Grade:        grade,
			DistanceText: distanceText,
			ETAText:      etaText,
			Subtitle:     fmt.Sprintf("%s • %s • %s", distanceText, etaText, grade.Label()),
			Color:        color,
			StepColors:   stepColors,
		}
	}

	r.logger.Debugw("evaluated route candidates",
		"count", len(candidates), "fastest", candidates[fastestIdx].ID, "best", candidates[bestIdx].ID)

	return out
}

func formatDistance(meters float64, units Units) string {
	if units == UnitsImperial {
		miles := meters / 1609.344
		if miles < 0.1 {
			return fmt.Sprintf("%.0f ft", meters*3.28084)
		}
		return fmt.Sprintf("%.1f mi", miles)
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func formatETA(d time.Duration) string {
	minutes := int(math.Round(d.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d hr %d min", minutes/60, minutes%60)
}

// navsim drives a synthetic ride through the full navigation pipeline:
// matching, cue generation, drift detection, ride recording, candidate
// ranking, and KML export. Useful for eyeballing pipeline behavior without
// a device.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/export"
	"github.com/ridewise/navcore/internal/lib/cue"
	"github.com/ridewise/navcore/internal/lib/drift"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/match"
	"github.com/ridewise/navcore/internal/lib/options"
	"github.com/ridewise/navcore/internal/lib/route"
	"github.com/ridewise/navcore/internal/lib/score"
	"github.com/ridewise/navcore/internal/recorder"
	"github.com/ridewise/navcore/internal/segment"
)

func main() {
	var (
		storePath = flag.String("store", "navsim-segments.json", "segment store file")
		kmlPath   = flag.String("kml", "navsim-options.kml", "KML output for ranked candidates")
	)
	flag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	cfg := config.DefaultConfig()

	// A short two-step ride through central Copenhagen.
	geometry := route.Geometry{Steps: []route.Step{
		{
			Polyline: []geo.Point{
				{Latitude: 55.6761, Longitude: 12.5683},
				{Latitude: 55.6785, Longitude: 12.5683},
			},
			Distance:    267,
			Duration:    60 * time.Second,
			Instruction: "Turn right onto Gothersgade",
		},
		{
			Polyline: []geo.Point{
				{Latitude: 55.6785, Longitude: 12.5683},
				{Latitude: 55.6785, Longitude: 12.5740},
			},
			Distance:    358,
			Duration:    80 * time.Second,
			Instruction: "Arrive at your destination",
		},
	}}

	store := segment.NewStore(segment.NewFileBackend(*storePath), cfg.Segment, logger, nil)
	matcher := match.NewMatcher(cfg.Matcher)
	rec := recorder.New(store, score.ModeCommute, score.SkillIntermediate, logger, nil)
	cues := cue.NewEngine(cfg.Cue, logger, nil)
	detector := drift.NewDetector(cfg.Drift, logger, nil)

	rideID := rec.StartRide(geometry)
	logger.Infow("simulating ride", "ride_id", rideID)

	if start := cues.SetRoute(geometry); start != nil {
		logger.Infow("cue", "tier", start.Tier.String(), "text", start.Text)
	}
	detector.StartMonitoring(geometry, func(from geo.Point) {
		logger.Warnw("reroute requested", "lat", from.Latitude, "lng", from.Longitude)
	})

	// March along the route at ~5 m/s, sampling every two seconds.
	flat := geometry.FlatPolyline()
	now := time.Now()
	for i := 0; i <= 60; i++ {
		t := float64(i) / 60
		pos := interpolateAlong(flat, t)
		sample := route.PositionSample{
			Coordinate:         pos,
			HorizontalAccuracy: 8,
			Speed:              5,
			Timestamp:          now.Add(time.Duration(i) * 2 * time.Second),
			Roughness:          0.6 + 0.4*t,
		}

		matched := matcher.Match(geometry, sample, rec.SmoothedSpeed())
		rec.Observe(sample, matched)

		if c := cues.Evaluate(sample, matched); c != nil {
			logger.Infow("cue", "tier", c.Tier.String(), "text", c.Text, "icon", c.Icon)
		}
		if st := detector.Evaluate(sample); st.Evaluated && st.OffRoute {
			logger.Warnw("drift", "distance_m", st.Distance, "threshold_m", st.Threshold)
		}
	}

	rec.FinishRide()
	detector.StopMonitoring()

	if err := store.Flush(); err != nil {
		logger.Errorw("segment flush failed", "error", err)
	}

	// Rank the ridden route against a longer alternative and export.
	alternative := route.Geometry{Steps: []route.Step{
		{
			Polyline: []geo.Point{
				{Latitude: 55.6761, Longitude: 12.5683},
				{Latitude: 55.6761, Longitude: 12.5740},
				{Latitude: 55.6785, Longitude: 12.5740},
			},
			Distance:    625,
			Duration:    150 * time.Second,
			Instruction: "Continue straight",
		},
	}}

	candidates := []options.Candidate{
		{ID: "ridden", Geometry: geometry, SlopePenalty: 0.1},
		{ID: "alternative", Geometry: alternative, SlopePenalty: 0.3},
	}

	reducer := options.NewReducer(store, options.UnitsMetric, score.PaletteStandard, logger)
	presentations := reducer.Evaluate(candidates, score.ModeCommute, score.SkillIntermediate)
	for id, p := range presentations {
		logger.Infow("candidate", "id", id, "label", p.Label, "subtitle", p.Subtitle, "color", p.Color.Hex())
	}

	f, err := os.Create(*kmlPath)
	if err != nil {
		logger.Fatalw("failed to create KML file", "error", err)
	}
	defer f.Close()
	if err := export.WriteCandidates(f, candidates, presentations); err != nil {
		logger.Fatalw("KML export failed", "error", err)
	}
	logger.Infow("simulation complete", "kml", *kmlPath, "segments", store.Len())
}

// interpolateAlong walks a fraction t of the total path length.
func interpolateAlong(path []geo.Point, t float64) geo.Point {
	total := geo.PathLength(path)
	if total == 0 || len(path) == 0 {
		return geo.Point{}
	}
	target := total * t
	traversed := 0.0
	for i := 0; i < len(path)-1; i++ {
		edge := geo.Haversine(path[i], path[i+1])
		if traversed+edge >= target && edge > 0 {
			return geo.Interpolate(path[i], path[i+1], (target-traversed)/edge)
		}
		traversed += edge
	}
	return path[len(path)-1]
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/match"
	"github.com/ridewise/navcore/internal/lib/route"
)

// routeFile is the on-disk shape consumed by the tool: steps with their
// polylines still provider-encoded.
type routeFile struct {
	Steps []struct {
		Polyline    string  `json:"polyline"`
		Distance    float64 `json:"distance"`
		Duration    float64 `json:"duration_seconds"`
		Instruction string  `json:"instruction"`
	} `json:"steps"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "match":
		handleMatch()
	case "distance":
		handleDistance()
	case "fingerprint":
		handleFingerprint()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	routePath := fs.String("route-json", "", "Path to JSON file containing the route steps")
	lat := fs.Float64("lat", 0, "Sample latitude")
	lng := fs.Float64("lng", 0, "Sample longitude")
	accuracy := fs.Float64("accuracy", 10, "Horizontal accuracy in meters")
	speed := fs.Float64("speed", -1, "Speed in m/s (-1 for unknown)")
	verbose := fs.Bool("verbose", false, "Show per-step projection distances")

	fs.Parse(os.Args[2:])

	if *routePath == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-matcher match --route-json route.json --lat 55.676 --lng 12.568")
		fmt.Println("")
		printSampleRoute()
		os.Exit(1)
	}

	g := loadRoute(*routePath)
	sample := route.PositionSample{
		Coordinate:         geo.Point{Latitude: *lat, Longitude: *lng},
		HorizontalAccuracy: *accuracy,
		Speed:              *speed,
		Timestamp:          time.Now(),
	}

	matcher := match.NewMatcher(config.DefaultConfig().Matcher)
	result := matcher.Match(g, sample, *speed)
	if result == nil {
		fmt.Println("No match: route has no projectable geometry")
		os.Exit(1)
	}

	fmt.Printf("Step:         %d\n", result.StepIndex)
	fmt.Printf("Progress:     %.1f%%\n", result.Progress*100)
	fmt.Printf("To next:      %.1f m\n", result.DistanceToNext)
	fmt.Printf("Snapped:      %.6f, %.6f\n", result.Snapped.Latitude, result.Snapped.Longitude)
	fmt.Printf("Confidence:   %.2f (%s)\n", result.Confidence, result.Quality)

	if *verbose {
		fmt.Println("\nPer-step distances:")
		for i, step := range g.Steps {
			d := geo.MinDistanceToPath(sample.Coordinate, step.Polyline)
			fmt.Printf("  step %d: %.1f m\n", i, d)
		}
	}
}

func handleDistance() {
	fs := flag.NewFlagSet("distance", flag.ExitOnError)
	routePath := fs.String("route-json", "", "Path to JSON file containing the route steps")
	lat := fs.Float64("lat", 0, "Point latitude")
	lng := fs.Float64("lng", 0, "Point longitude")

	fs.Parse(os.Args[2:])

	if *routePath == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-matcher distance --route-json route.json --lat 55.676 --lng 12.568")
		os.Exit(1)
	}

	g := loadRoute(*routePath)
	p := geo.Point{Latitude: *lat, Longitude: *lng}
	d := geo.MinDistanceToPath(p, g.FlatPolyline())

	fmt.Printf("Distance to route: %.1f m\n", d)
	fmt.Printf("Route length:      %.0f m over %d steps\n", g.TotalDistance(), len(g.Steps))
}

func handleFingerprint() {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	routePath := fs.String("route-json", "", "Path to JSON file containing the route steps")

	fs.Parse(os.Args[2:])

	if *routePath == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-matcher fingerprint --route-json route.json")
		os.Exit(1)
	}

	g := loadRoute(*routePath)
	fmt.Printf("Fingerprint: %016x\n", g.Fingerprint())
	for i := range g.Steps {
		fmt.Printf("  step %d: %s\n", i, route.StepIDFor(g, i))
	}
}

func loadRoute(path string) route.Geometry {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading route file %s: %v", path, err)
	}

	var rf routeFile
	if err := json.Unmarshal(data, &rf); err != nil {
		log.Fatalf("Error parsing route JSON: %v", err)
	}

	steps := make([]route.EncodedStep, 0, len(rf.Steps))
	for _, s := range rf.Steps {
		steps = append(steps, route.EncodedStep{
			EncodedPolyline: s.Polyline,
			Distance:        s.Distance,
			Duration:        time.Duration(s.Duration * float64(time.Second)),
			Instruction:     s.Instruction,
		})
	}

	g, err := route.NewGeometry(steps)
	if err != nil {
		log.Fatalf("Error decoding route polylines: %v", err)
	}
	return g
}

func printSampleRoute() {
	fmt.Println("Sample route.json:")
	fmt.Println(`{
  "steps": [
    {
      "polyline": "_p~iF~ps|U_ulLnnqC",
      "distance": 2500,
      "duration_seconds": 540,
      "instruction": "Head north on Main Street"
    }
  ]
}`)
}

func printUsage() {
	fmt.Println("test-matcher - Map matching diagnostics")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  match        Match a position sample against a route")
	fmt.Println("  distance     Minimum distance from a point to a route")
	fmt.Println("  fingerprint  Print a route's fingerprint and step IDs")
	fmt.Println("  help         Show this help")
}

// Package export renders route candidates as KML for inspection by the
// rendering collaborator.
package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/ridewise/navcore/internal/lib/options"
)

// WriteCandidates writes a ranked candidate set as a KML document, one
// placemark per candidate colored by its presentation color.
func WriteCandidates(w io.Writer, candidates []options.Candidate, presentations map[string]options.Presentation) error {
	doc := kml.Document(kml.Name("Route options"))

	for _, c := range candidates {
		pres, ok := presentations[c.ID]
		if !ok {
			continue
		}

		flat := c.Geometry.FlatPolyline()
		coords := make([]kml.Coordinate, len(flat))
		for i, p := range flat {
			coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
		}

		doc.Add(kml.Placemark(
			kml.Name(fmt.Sprintf("%s (%s)", pres.Label, c.ID)),
			kml.Description(pres.Subtitle),
			kml.Style(
				kml.LineStyle(
					kml.Color(color.RGBA{R: pres.Color.R, G: pres.Color.G, B: pres.Color.B, A: 0xff}),
					kml.Width(4),
				),
			),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coords...),
			),
		))
	}

	k := kml.KML(doc)
	if err := k.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

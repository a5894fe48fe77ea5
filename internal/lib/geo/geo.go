package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// earthRadius is the mean Earth radius in meters.
const earthRadius = 6371000

// IsValidCoordinate reports whether a point lies within geographic range.
func IsValidCoordinate(p Point) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// NewPoint creates a Point from latitude and longitude values with validation.
func NewPoint(latitude, longitude float64) (Point, error) {
	p := Point{Latitude: latitude, Longitude: longitude}
	if !IsValidCoordinate(p) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return p, nil
}

// Haversine calculates the great-circle distance between two points in meters.
func Haversine(p1, p2 Point) float64 {
	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Flattener converts geographic coordinates to a planar space centered on a
// reference point using an equirectangular approximation. Adequate for the
// short lateral distances involved in corridor membership and step matching;
// error grows with distance from the reference point.
type Flattener struct {
	refLat float64
	refLon float64
	cosLat float64
}

// NewFlattener creates a Flattener anchored at the given reference point.
func NewFlattener(ref Point) Flattener {
	return Flattener{
		refLat: ref.Latitude,
		refLon: ref.Longitude,
		cosLat: math.Cos(ref.Latitude * math.Pi / 180),
	}
}

// Flatten converts a geographic point to planar meters.
func (f Flattener) Flatten(p Point) PlanarPoint {
	return PlanarPoint{
		X: (p.Longitude - f.refLon) * math.Pi / 180 * earthRadius * f.cosLat,
		Y: (p.Latitude - f.refLat) * math.Pi / 180 * earthRadius,
	}
}

// Unflatten converts a planar point back to geographic coordinates.
func (f Flattener) Unflatten(p PlanarPoint) Point {
	lat := f.refLat + p.Y/earthRadius*180/math.Pi
	lon := f.refLon
	if f.cosLat != 0 {
		lon = f.refLon + p.X/(earthRadius*f.cosLat)*180/math.Pi
	}
	return Point{Latitude: lat, Longitude: lon}
}

// ProjectOntoSegment projects p onto the segment a->b in planar space.
// Returns the closest planar point, the parametric fraction t clamped to
// [0,1], and the distance from p to that point in meters.
func ProjectOntoSegment(p, a, b PlanarPoint) (PlanarPoint, float64, float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		// Degenerate segment, both endpoints coincide.
		return a, 0, math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	closest := PlanarPoint{X: a.X + t*dx, Y: a.Y + t*dy}
	dist := math.Hypot(p.X-closest.X, p.Y-closest.Y)
	return closest, t, dist
}

// ProjectOntoPath finds the minimum-distance projection of a point onto a
// path of geographic coordinates. Returns false when the path has fewer than
// two points.
func ProjectOntoPath(p Point, path []Point) (PathProjection, bool) {
	if len(path) < 2 {
		return PathProjection{}, false
	}

	f := NewFlattener(p)
	pp := f.Flatten(p)

	best := PathProjection{Distance: math.Inf(1)}
	traversed := 0.0

	for i := 0; i < len(path)-1; i++ {
		a := f.Flatten(path[i])
		b := f.Flatten(path[i+1])
		edgeLen := math.Hypot(b.X-a.X, b.Y-a.Y)

		closest, t, dist := ProjectOntoSegment(pp, a, b)
		if dist < best.Distance {
			best = PathProjection{
				Distance:        dist,
				EdgeIndex:       i,
				T:               t,
				Point:           f.Unflatten(closest),
				TraversedMeters: traversed + t*edgeLen,
			}
		}
		traversed += edgeLen
	}

	return best, true
}

// MinDistanceToPath returns the minimum distance in meters from a point to a
// path. Paths with fewer than two points yield +Inf so that degenerate
// geometry never reads as "close".
func MinDistanceToPath(p Point, path []Point) float64 {
	proj, ok := ProjectOntoPath(p, path)
	if !ok {
		return math.Inf(1)
	}
	return proj.Distance
}

// PathLength returns the total length of a path in meters.
func PathLength(path []Point) float64 {
	total := 0.0
	for i := 0; i < len(path)-1; i++ {
		total += Haversine(path[i], path[i+1])
	}
	return total
}

// Interpolate returns the point a fraction t of the way from start to end.
// Linear interpolation is adequate for road-scale segments.
func Interpolate(start, end Point, t float64) Point {
	return Point{
		Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
		Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
	}
}

// Subsample uniformly reduces a path to at most maxVertices points, always
// retaining the first and last point. Paths already within budget are
// returned as-is.
func Subsample(path []Point, maxVertices int) []Point {
	if maxVertices < 2 || len(path) <= maxVertices {
		return path
	}

	out := make([]Point, 0, maxVertices)
	step := float64(len(path)-1) / float64(maxVertices-1)
	for i := 0; i < maxVertices-1; i++ {
		out = append(out, path[int(float64(i)*step)])
	}
	out = append(out, path[len(path)-1])
	return out
}

// DecodePolyline decodes a Google-encoded polyline string to a point sequence.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !IsValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

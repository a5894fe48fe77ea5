package geo

// Point represents a geographic coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// PlanarPoint is a point in a locally flattened coordinate space, in meters.
// Valid only near the Flattener's reference point.
type PlanarPoint struct {
	X float64
	Y float64
}

// PathProjection describes the closest point on a path to a query point.
type PathProjection struct {
	// Distance from the query point to the projected point, meters.
	Distance float64
	// EdgeIndex identifies the edge (points[i] -> points[i+1]) the
	// projection landed on.
	EdgeIndex int
	// T is the parametric fraction along that edge, clamped to [0,1].
	T float64
	// Point is the projected geographic coordinate.
	Point Point
	// TraversedMeters is the path length from the start of the path up to
	// the projected point.
	TraversedMeters float64
}

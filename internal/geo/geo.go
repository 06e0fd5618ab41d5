package geo

import (
	"errors"
	"math"
)

// ErrInvalidGeometry is returned for rings with fewer than 3 distinct points
// or self-intersecting rings.
var ErrInvalidGeometry = errors.New("Invalid geometry")

// MetersPerDegree is the fixed degrees-to-meters approximation used for GPS
// tolerance buffering (1 degree ~ 111,320 m). Latitude-independent on purpose:
// it matches the behaviour the mobile clients were calibrated against. The
// error grows away from the equator; a geodesic buffer is a future revision.
const MetersPerDegree = 111320.0

// Web Mercator sphere radius (EPSG:3857), used for planar area projection.
const mercatorRadiusM = 6378137.0

const earthRadiusM = 6371000.0

// Point is a geographic coordinate in (longitude, latitude) order, WGS-84.
type Point struct {
	Lon float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// Ring is an ordered sequence of points forming an implicitly closed ring
// (the last point connects back to the first).
type Ring []Point

// Polygon is a single closed ring with optional holes.
type Polygon struct {
	Exterior Ring
	Holes    []Ring
}

// MultiPolygon is a set of disjoint polygons describing one logical area.
type MultiPolygon []Polygon

// distinctPoints counts distinct vertices, ignoring a duplicated closing point.
func distinctPoints(r Ring) int {
	seen := make(map[Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Validate checks every ring for at least 3 distinct points and for
// self-intersection. It is the gate on boundary writes; the numeric
// operations below only re-check the vertex-count invariant.
func Validate(mp MultiPolygon) error {
	for _, poly := range mp {
		rings := append([]Ring{poly.Exterior}, poly.Holes...)
		for _, r := range rings {
			if distinctPoints(r) < 3 {
				return ErrInvalidGeometry
			}
			if ringSelfIntersects(r) {
				return ErrInvalidGeometry
			}
		}
	}
	return nil
}

// ProjectedArea reprojects the rings into planar Web Mercator meters and
// accumulates the shoelace area of each exterior ring minus its holes.
// This is the single source of truth for every area figure in the system.
func ProjectedArea(mp MultiPolygon) (float64, error) {
	total := 0.0
	for _, poly := range mp {
		a, err := ringProjectedArea(poly.Exterior)
		if err != nil {
			return 0, err
		}
		for _, hole := range poly.Holes {
			h, err := ringProjectedArea(hole)
			if err != nil {
				return 0, err
			}
			a -= h
		}
		if a < 0 {
			a = 0
		}
		total += a
	}
	return total, nil
}

func ringProjectedArea(r Ring) (float64, error) {
	if distinctPoints(r) < 3 {
		return 0, ErrInvalidGeometry
	}
	// Shoelace over projected coordinates; magnitude, so ring orientation
	// does not matter.
	sum := 0.0
	n := len(r)
	for i := 0; i < n; i++ {
		x1, y1 := project(r[i])
		x2, y2 := project(r[(i+1)%n])
		sum += x1*y2 - x2*y1
	}
	return math.Abs(sum) / 2, nil
}

// project maps a geographic point to Web Mercator meters.
func project(p Point) (x, y float64) {
	x = mercatorRadiusM * p.Lon * math.Pi / 180
	lat := p.Lat
	// Clamp away from the poles where Mercator diverges.
	if lat > 89.9 {
		lat = 89.9
	} else if lat < -89.9 {
		lat = -89.9
	}
	y = mercatorRadiusM * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// Centroid returns the arithmetic centroid of the exterior rings, weighted by
// ring area when the multipolygon has more than one part.
func Centroid(mp MultiPolygon) (Point, error) {
	if len(mp) == 0 {
		return Point{}, ErrInvalidGeometry
	}
	var sumLon, sumLat, sumW float64
	for _, poly := range mp {
		c, err := ringCentroid(poly.Exterior)
		if err != nil {
			return Point{}, err
		}
		w, err := ringProjectedArea(poly.Exterior)
		if err != nil {
			return Point{}, err
		}
		sumLon += c.Lon * w
		sumLat += c.Lat * w
		sumW += w
	}
	if sumW == 0 {
		// Degenerate (zero-area) parts: fall back to the first ring's mean.
		return ringCentroid(mp[0].Exterior)
	}
	return Point{Lon: sumLon / sumW, Lat: sumLat / sumW}, nil
}

func ringCentroid(r Ring) (Point, error) {
	if distinctPoints(r) < 3 {
		return Point{}, ErrInvalidGeometry
	}
	pts := r
	// Drop a duplicated closing vertex so it is not double counted.
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	var sumLon, sumLat float64
	for _, p := range pts {
		sumLon += p.Lon
		sumLat += p.Lat
	}
	n := float64(len(pts))
	return Point{Lon: sumLon / n, Lat: sumLat / n}, nil
}

// BufferContains reports whether point lies within the multipolygon once the
// boundary is notionally expanded outward by toleranceM meters, converted to
// degrees via MetersPerDegree. Containment is boundary-inclusive: a point
// exactly on an edge or vertex is inside at zero tolerance.
func BufferContains(mp MultiPolygon, p Point, toleranceM float64) bool {
	tolDeg := 0.0
	if toleranceM > 0 {
		tolDeg = toleranceM / MetersPerDegree
	}
	for _, poly := range mp {
		if polygonContains(poly, p, tolDeg) {
			return true
		}
	}
	return false
}

func polygonContains(poly Polygon, p Point, tolDeg float64) bool {
	// Near (or on) the exterior boundary counts as contained.
	if ringEdgeDistance(poly.Exterior, p) <= tolDeg {
		return true
	}
	if !rayCast(poly.Exterior, p) {
		return false
	}
	for _, hole := range poly.Holes {
		// Inside a hole only excludes the point when it is also beyond
		// tolerance of the hole's edge.
		if rayCast(hole, p) && ringEdgeDistance(hole, p) > tolDeg {
			return false
		}
	}
	return true
}

// rayCast is the even-odd crossing test on the lon/lat plane.
func rayCast(r Ring, p Point) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lon
			if p.Lon < x {
				inside = !inside
			}
		}
	}
	return inside
}

// ringEdgeDistance returns the minimal planar distance in degrees from p to
// any edge of the ring.
func ringEdgeDistance(r Ring, p Point) float64 {
	min := math.Inf(1)
	n := len(r)
	for i := 0; i < n; i++ {
		d := segmentDistance(r[i], r[(i+1)%n], p)
		if d < min {
			min = d
		}
	}
	return min
}

func segmentDistance(a, b, p Point) float64 {
	dx, dy := b.Lon-a.Lon, b.Lat-a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lon-a.Lon, p.Lat-a.Lat)
	}
	t := ((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.Lon-(a.Lon+t*dx), p.Lat-(a.Lat+t*dy))
}

// Distance returns the great-circle (haversine) distance between two points
// in meters. Symmetric and monotonic; used for proximity ranking.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ringSelfIntersects reports whether any two non-adjacent edges of the ring
// properly cross.
func ringSelfIntersects(r Ring) bool {
	pts := r
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	n := len(pts)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges sharing a vertex with edge i.
			if j == i || (j+1)%n == i || j == (i+1)%n {
				continue
			}
			b1, b2 := pts[j], pts[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b Point) float64 {
	return (a.Lon-o.Lon)*(b.Lat-o.Lat) - (a.Lat-o.Lat)*(b.Lon-o.Lon)
}

// Package geo provides the spherical math kernels used throughout the
// cleaning and enrichment pipeline: great-circle distance, initial bearing,
// unsigned turn angle, and spherical midpoint.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Coord is a WGS84 decimal-degree point. It is never mutated by package geo.
type Coord struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between a and b in meters.
// It is antimeridian- and pole-safe: s2.LatLng.Distance uses the haversine
// form, where the longitude difference only enters as sin^2 of its half, so
// a difference near 360 degrees gives the same result as one near 0 and no
// wraparound correction is needed at +/-180 degrees.
func Haversine(a, b Coord) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// InitialBearing returns the forward azimuth from a to b in degrees,
// normalized to [0, 360). Bearing at the poles is implementation-defined:
// atan2 there yields a value that depends only on the longitude difference
// between a and b, which callers must not treat as meaningful.
func InitialBearing(a, b Coord) float64 {
	lat1 := s2.LatLngFromDegrees(a.Lat, a.Lon).Lat.Radians()
	lat2 := s2.LatLngFromDegrees(b.Lat, b.Lon).Lat.Radians()
	lonDiff := s2.LatLngFromDegrees(b.Lat, b.Lon).Lng.Radians() - s2.LatLngFromDegrees(a.Lat, a.Lon).Lng.Radians()

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)
	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// AngularDelta returns the unsigned turn angle at the shared vertex of two
// consecutive legs, in [0, 180]: the bearing from prev to cur, then from cur
// to next, folded through 180 - |180 - |b2-b1||.
func AngularDelta(prev, cur, next Coord) float64 {
	b1 := InitialBearing(prev, cur)
	b2 := InitialBearing(cur, next)
	return 180 - math.Abs(180-math.Abs(b2-b1))
}

// SphericalMidpoint returns the point halfway along the great-circle arc
// between a and b, used by the distance and angle imputation operators.
func SphericalMidpoint(a, b Coord) Coord {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	mid := s2.Interpolate(0.5, s2.PointFromLatLng(p1), s2.PointFromLatLng(p2))
	midLatLng := s2.LatLngFromPoint(mid)
	return Coord{Lat: midLatLng.Lat.Degrees(), Lon: midLatLng.Lng.Degrees()}
}

// CumulativePath returns the running sum of Haversine distances between
// successive points, one entry per point (the first entry is always 0).
func CumulativePath(points []Coord) []float64 {
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		out[i] = out[i-1] + Haversine(points[i-1], points[i])
	}
	return out
}

// TotalPath returns the sum of Haversine distances between successive points.
func TotalPath(points []Coord) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1], points[i])
	}
	return total
}

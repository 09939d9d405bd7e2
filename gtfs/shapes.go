package gtfs

import (
	"math"
	"sort"
)

// earthRadiusMeters is the mean spherical-earth radius used for all
// great-circle math.
const earthRadiusMeters = 6371000.0

const degToRad = math.Pi / 180

// HaversineMeters returns the great-circle distance between two points on a
// spherical earth.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := lat1 * degToRad
	p2 := lat2 * degToRad
	dp := (lat2 - lat1) * degToRad
	dl := (lng2 - lng1) * degToRad
	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BearingDegrees returns the initial compass bearing from point 1 to point 2,
// in degrees clockwise from north in [0, 360).
func BearingDegrees(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := lat1 * degToRad
	p2 := lat2 * degToRad
	dl := (lng2 - lng1) * degToRad
	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	return math.Mod(math.Atan2(y, x)/degToRad+360, 360)
}

// BuildShape sorts raw points by sequence and integrates great-circle
// distances between consecutive points into CumulativeMeters. The result is
// non-decreasing along the shape.
func BuildShape(points []ShapePoint) []ShapePoint {
	out := make([]ShapePoint, len(points))
	copy(out, points)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	cum := 0.0
	for i := range out {
		if i > 0 {
			cum += HaversineMeters(out[i-1].Lat, out[i-1].Lng, out[i].Lat, out[i].Lng)
		}
		out[i].CumulativeMeters = cum
	}
	return out
}

// SnapResult is the projection of a position onto a route shape.
type SnapResult struct {
	DistanceAlongRoute float64
	Bearing            float64
}

// Snap projects a lat/lng onto the nearest segment of a shape and returns the
// distance along the route to the projected point plus the segment's bearing.
//
// The projection parameter is computed on raw lat/lng treated as planar
// Cartesian coordinates. That approximation is fine at city scale and unsound
// near the poles or the antimeridian; the comparison distance itself is a
// true great-circle distance.
func Snap(lat, lng float64, shape []ShapePoint) SnapResult {
	if len(shape) == 0 {
		return SnapResult{}
	}
	if len(shape) == 1 {
		return SnapResult{DistanceAlongRoute: shape[0].CumulativeMeters}
	}

	bestDist := math.Inf(1)
	var best SnapResult
	for i := 0; i < len(shape)-1; i++ {
		a, b := shape[i], shape[i+1]

		abx := b.Lng - a.Lng
		aby := b.Lat - a.Lat
		abLen2 := abx*abx + aby*aby

		t := 0.0
		if abLen2 > 0 {
			t = ((lng-a.Lng)*abx + (lat-a.Lat)*aby) / abLen2
			t = math.Max(0, math.Min(1, t))
		}

		cx := a.Lng + t*abx
		cy := a.Lat + t*aby
		d := HaversineMeters(lat, lng, cy, cx)
		if d < bestDist {
			bestDist = d
			best = SnapResult{
				DistanceAlongRoute: a.CumulativeMeters + t*(b.CumulativeMeters-a.CumulativeMeters),
				Bearing:            BearingDegrees(a.Lat, a.Lng, b.Lat, b.Lng),
			}
		}
	}
	return best
}

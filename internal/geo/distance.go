// Package geo provides geolocation primitives for radius search and
// coarse location handling.
package geo

import "math"

// EarthRadiusMeters is the mean radius of the Earth in meters, matching
// the sphere used by ST_Distance_Sphere.
const EarthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Region is an axis-aligned bounding box over latitude/longitude.
type Region struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether p lies inside the region (inclusive bounds).
func (r Region) Contains(p Point) bool {
	return p.Lat >= r.MinLat && p.Lat <= r.MaxLat &&
		p.Lng >= r.MinLng && p.Lng <= r.MaxLng
}

// BoundingRegion returns a lat/lng box containing every point within
// radiusMeters of center. The box over-approximates the circle, so a
// radius scan prefilters rows with it and keeps the exact haversine
// check for the remainder.
func BoundingRegion(center Point, radiusMeters float64) Region {
	latDelta := radiusMeters / EarthRadiusMeters * 180 / math.Pi

	lngDelta := 180.0
	if cosLat := math.Cos(center.Lat * math.Pi / 180); cosLat > 1e-9 {
		lngDelta = latDelta / cosLat
	}

	return Region{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// Distance returns the great-circle distance between a and b in meters,
// using the haversine formula over a sphere of EarthRadiusMeters.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinRadius reports whether a and b are at most radiusMeters apart.
// Symmetric: WithinRadius(a, b, r) == WithinRadius(b, a, r).
func WithinRadius(a, b Point, radiusMeters float64) bool {
	return Distance(a, b) <= radiusMeters
}

// Package geo holds the coordinate math behind nearby and search queries.
// Coordinates are WGS84 decimal degrees and are not validated here.
package geo

import (
	"math"
	"sort"
)

const (
	// EarthRadiusMeters is the sphere radius used by DistanceMeters.
	EarthRadiusMeters = 6_371_000.0

	kmPerDegreeLat = 110.574
	kmPerDegreeLon = 111.32
)

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox approximates a circular search area around a center.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Box returns the equirectangular box of radiusKm around (lat, lon).
// It is accurate for radii of a few kilometers; near the poles the longitude
// span diverges.
func Box(lat, lon, radiusKm float64) BoundingBox {
	latDelta := radiusKm / kmPerDegreeLat
	lonDelta := radiusKm / (kmPerDegreeLon * math.Cos(toRad(lat)))
	return BoundingBox{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLon: lon - lonDelta,
		MaxLon: lon + lonDelta,
	}
}

// Contains reports whether (lat, lon) lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// DistanceMeters is the haversine great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLon/2), 2)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// Match is a candidate kept by Nearby together with its distance from the origin.
type Match[T any] struct {
	Item           T
	DistanceMeters float64
}

// Locator extracts a candidate's position and category.
type Locator[T any] func(T) (Point, string)

// Nearby keeps candidates within maxMeters of origin (inclusive) whose
// category equals category exactly, sorted by ascending distance. Ties keep
// their input order. It scans every candidate.
func Nearby[T any](candidates []T, origin Point, maxMeters float64, category string, locate Locator[T]) []Match[T] {
	matches := make([]Match[T], 0)
	for _, c := range candidates {
		p, cat := locate(c)
		if cat != category {
			continue
		}
		d := DistanceMeters(origin.Lat, origin.Lon, p.Lat, p.Lon)
		if d <= maxMeters {
			matches = append(matches, Match[T]{Item: c, DistanceMeters: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})
	return matches
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

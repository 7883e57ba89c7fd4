package core

import (
	"math"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// ScaleFactor compensates mercator-style stretching at the box's mid latitude.
func ScaleFactor(bbox model.BoundingBox) float64 {
	midLat := (bbox.MinLat + bbox.MaxLat) / 2 * math.Pi / 180
	return 1 / math.Cos(midLat)
}

// AreaKm2 approximates the box area in km², accounting for earth curvature.
func AreaKm2(bbox model.BoundingBox) float64 {
	latMid := (bbox.MinLat + bbox.MaxLat) / 2 * math.Pi / 180
	dLat := bbox.MaxLat - bbox.MinLat
	dLon := bbox.MaxLon - bbox.MinLon

	// Degree to meter factors
	kx := 111132.92 - 559.82*math.Cos(2*latMid)
	ky := 111412.84 * math.Cos(latMid)

	return math.Abs(dLat*kx*dLon*ky) / 1000000
}

// DiagonalKm is the great-circle distance between the box's corners.
func DiagonalKm(bbox model.BoundingBox) float64 {
	return haversine(bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in km
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// ValidateCoordinates reports whether the pair is a plausible WGS84
// coordinate: latitude in [-90, 90], longitude in [-180, 180].
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

// DistanceMeters returns the haversine great-circle distance between
// two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// BoundingDeltas converts a radius in meters into latitude and longitude
// degree deltas around the given latitude, for coarse bounding-box
// queries. Longitude degrees shrink with latitude; near the poles the
// delta is clamped to a full hemisphere.
func BoundingDeltas(lat, radiusMeters float64) (latDelta, lngDelta float64) {
	latDelta = radiusMeters / earthRadiusMeters * 180 / math.Pi

	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		return latDelta, 180
	}
	lngDelta = latDelta / cos
	return latDelta, lngDelta
}

package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 position.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Valid reports whether the point lies within longitude [-180,180] and
// latitude [-90,90].
func (p Point) Valid() bool {
	return p.Lng >= -180 && p.Lng <= 180 && p.Lat >= -90 && p.Lat <= 90 &&
		!math.IsNaN(p.Lng) && !math.IsNaN(p.Lat)
}

// HaversineKm returns the great-circle distance between two lat/lng pairs.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// DistanceKm is HaversineKm between two points.
func DistanceKm(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

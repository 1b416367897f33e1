package geo

import "math"

const earthRadiusM = 6371000

// HaversineM returns the great-circle distance in meters between two
// lat/lon pairs on a spherical earth.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// HaversineKm is HaversineM in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineM(lat1, lon1, lat2, lon2) / 1000
}

// TurnAngleDeg returns the angle in degrees between the vectors a->b and
// b->c, treating lat/lon as a flat plane. Good enough at track-point scale.
func TurnAngleDeg(aLat, aLon, bLat, bLon, cLat, cLon float64) float64 {
	dx1 := bLon - aLon
	dy1 := bLat - aLat
	dx2 := cLon - bLon
	dy2 := cLat - bLat

	dot := dx1*dx2 + dy1*dy2
	mag1 := math.Sqrt(dx1*dx1 + dy1*dy1)
	mag2 := math.Sqrt(dx2*dx2 + dy2*dy2)
	cos := dot / (mag1*mag2 + 1e-6)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

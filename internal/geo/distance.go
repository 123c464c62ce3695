package geo

import "math"

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using the
// spherical law of cosines. All arguments are in radians.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	arg := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)
	if arg >= 1.0 {
		return 0
	}
	return math.Acos(arg) * earthRadiusKm
}

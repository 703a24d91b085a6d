package matching

import "math"

const earthRadiusKm = 6371

// haversineKm is the great-circle distance between two coordinates in
// kilometers.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// approxDistanceKm is the flat-plane degree approximation (~111 km per
// degree) used by the dealbreaker check, which only needs a coarse
// over/under call against maxDistance.
func approxDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	latDiff := math.Abs(lat1 - lat2)
	lonDiff := math.Abs(lon1 - lon2)
	return math.Sqrt(latDiff*latDiff+lonDiff*lonDiff) * 111
}

// Package geo provides great-circle math for coordinates expressed in
// decimal degrees.  Distances are returned in miles, the unit used
// throughout the API.
package geo

import "math"

// EarthRadiusMiles is the mean radius of the Earth.
const EarthRadiusMiles = 3958.8

// milesPerDegreeLat is the approximate north-south span of one degree
// of latitude.  Used for bounding-box candidate filtering only; the
// precise distance always comes from Distance.
const milesPerDegreeLat = 69.0

// Distance returns the great-circle distance in miles between two
// coordinates using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

// BoundingBox describes a latitude/longitude rectangle around a center
// point.  It over-approximates a circular radius and is meant for cheap
// SQL range filtering before exact distance computation.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoxAround returns the bounding box extending radiusMiles in every
// direction from the given center.  The longitude half-width is
// corrected by cos(latitude) so the box keeps a roughly constant
// physical width away from the equator.  Near the poles the correction
// degenerates; we clamp the divisor to avoid an unbounded box.
func BoxAround(lat, lon, radiusMiles float64) BoundingBox {
	dLat := radiusMiles / milesPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLon := radiusMiles / (milesPerDegreeLat * cosLat)
	return BoundingBox{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLon: lon - dLon,
		MaxLon: lon + dLon,
	}
}

// Round2 rounds a distance to two decimal places for API responses.
func Round2(miles float64) float64 {
	return math.Round(miles*100) / 100
}

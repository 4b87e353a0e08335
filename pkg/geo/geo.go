package geo

import "math"

// WGS-84 ellipsoid semi-axes in meters.
const (
	wgs84A = 6378137.0
	wgs84B = 6356752.314245
)

// ECEFFromLLA computes earth-centered earth-fixed XYZ from latitude,
// longitude (degrees) and altitude (meters above the WGS-84 ellipsoid).
func ECEFFromLLA(lat, lon, alt float64) (x, y, z float64) {
	a2 := wgs84A * wgs84A
	b2 := wgs84B * wgs84B
	lat = lat * math.Pi / 180
	lon = lon * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	l := 1.0 / math.Sqrt(a2*cosLat*cosLat+b2*sinLat*sinLat)
	x = (a2*l + alt) * cosLat * cosLon
	y = (a2*l + alt) * cosLat * sinLon
	z = (b2*l + alt) * sinLat
	return
}

// Distance returns the straight-line distance in meters between two
// lat/lon pairs, both projected onto the ellipsoid surface.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	x1, y1, z1 := ECEFFromLLA(lat1, lon1, 0)
	x2, y2, z2 := ECEFFromLLA(lat2, lon2, 0)
	dx, dy, dz := x1-x2, y1-y2, z1-z2
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Bearing returns the compass bearing in degrees from the start position to
// the end position.
func Bearing(startLat, startLon, endLat, endLon float64) float64 {
	startLat = startLat * math.Pi / 180
	startLon = startLon * math.Pi / 180
	endLat = endLat * math.Pi / 180
	endLon = endLon * math.Pi / 180

	dLon := endLon - startLon
	if math.Abs(dLon) > math.Pi {
		if dLon > 0 {
			dLon = -(2*math.Pi - dLon)
		} else {
			dLon = 2*math.Pi + dLon
		}
	}

	y := math.Sin(dLon) * math.Cos(endLat)
	x := math.Cos(startLat)*math.Sin(endLat) - math.Sin(startLat)*math.Cos(endLat)*math.Cos(dLon)
	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

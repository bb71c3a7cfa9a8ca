package transform

import "math"

// WGS-84 ellipsoid, kilometres.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Geodetic is a WGS-84 position: degrees and kilometres above the ellipsoid.
type Geodetic struct {
	LatDeg, LonDeg, AltKm float64
}

// GeodeticToECEF converts a geodetic position to ECEF kilometres.
func GeodeticToECEF(g Geodetic) Vector {
	lat := g.LatDeg * math.Pi / 180.0
	lon := g.LonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)

	// Prime vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Vector{
		X: (n + g.AltKm) * cosLat * math.Cos(lon),
		Y: (n + g.AltKm) * cosLat * math.Sin(lon),
		Z: (n*(1-wgs84E2) + g.AltKm) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF kilometres to geodetic using Bowring
// iteration; five rounds converge well below a metre for orbital altitudes.
func ECEFToGeodetic(v Vector) Geodetic {
	lon := math.Atan2(v.Y, v.X)
	p := math.Hypot(v.X, v.Y)
	lat := math.Atan2(v.Z, p*(1-wgs84E2))

	for range 5 {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(v.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(v.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}

package transform

import (
	"math"
	"time"
)

// earthShadowRadiusKm is the mean Earth radius used for the shadow cone.
const earthShadowRadiusKm = 6371.0

// Shadow is the lighting state of an object with respect to Earth's shadow.
type Shadow int

const (
	Sunlit Shadow = iota
	Penumbra
	Umbra
)

func (s Shadow) String() string {
	switch s {
	case Penumbra:
		return "penumbra"
	case Umbra:
		return "umbra"
	default:
		return "sunlit"
	}
}

// ShadowOf classifies a position given in an Earth-centred equatorial frame
// (TEME is close enough) at t. It compares the angle between the Sun and
// Earth's centre as seen from the object against the apparent radii of both
// discs.
func ShadowOf(pos Vector, t time.Time) Shadow {
	return shadowWithSun(pos, SunPosition(t))
}

func shadowWithSun(pos, sun Vector) Shadow {
	r := pos.Norm()
	if r <= earthShadowRadiusKm {
		return Umbra
	}

	toSun := sun.Sub(pos)
	toEarth := pos.Scale(-1)
	cosSep := toSun.Dot(toEarth) / (toSun.Norm() * r)
	sep := math.Acos(math.Max(-1, math.Min(1, cosSep)))

	earthAng := math.Asin(earthShadowRadiusKm / r)
	sunAng := math.Asin(sunRadiusKm / toSun.Norm())

	switch {
	case earthAng > sunAng && sep < earthAng-sunAng:
		return Umbra
	case sep < earthAng+sunAng:
		return Penumbra
	default:
		return Sunlit
	}
}

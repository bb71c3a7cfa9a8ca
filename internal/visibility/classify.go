package visibility

import (
	"errors"
	"fmt"
	"math"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
)

const (
	// PlatformRangeKm is the farthest ground distance at which an orbiting
	// platform is reported visible.
	PlatformRangeKm = 2000.0
	// AtmosphericRangeKm is the farthest ground distance for a bolide.
	AtmosphericRangeKm = 1000.0

	// HighRiskProbability is the impact probability above which a risk
	// assessment ranks high.
	HighRiskProbability = 0.001

	closeApproachHighKm    = 1_000_000.0
	closeApproachMediumH   = 20.0
	missionExcellentDeltaV = 10.0
)

// Reasons for atmospheric events without usable geometry.
const (
	ReasonNoLocation         = "no location data"
	ReasonInvalidCoordinates = "invalid coordinates"
)

// Classify decides visibility of ev from obs. It never fails: bad input is
// reported through Result.Reason.
func Classify(obs Observer, ev Event) Result {
	switch e := ev.(type) {
	case OrbitingPlatform:
		return classifyPlatform(obs, e)
	case AtmosphericEvent:
		return classifyAtmospheric(obs, e)
	case CloseApproach:
		return classifyCloseApproach(e)
	case RiskAssessment:
		return classifyRisk(e)
	case MissionTarget:
		return classifyMission(e)
	default:
		return Result{Reason: "unsupported event category"}
	}
}

func roundKm(km float64) string {
	return fmt.Sprintf("%.0f", math.Round(km))
}

func classifyPlatform(obs Observer, e OrbitingPlatform) Result {
	dist := geo.DistanceKm(obs.Location, e.Sample.Point)
	res := Result{
		DistanceKm: dist,
		Direction:  geo.BearingCompass(obs.Location, e.Sample.Point),
	}

	inRange := dist <= PlatformRangeKm
	night := e.Sample.Illumination == Night

	switch {
	case inRange && night:
		res.IsVisible = true
		res.Reason = fmt.Sprintf("visible %s km away", roundKm(dist))
	case !inRange:
		res.Reason = fmt.Sprintf("%s km away, too far", roundKm(dist))
	case e.Sample.Illumination == Daylight:
		res.Reason = fmt.Sprintf("%s km away, in daylight", roundKm(dist))
	default:
		res.Reason = fmt.Sprintf("%s km away, illumination unknown", roundKm(dist))
	}
	return res
}

func classifyAtmospheric(obs Observer, e AtmosphericEvent) Result {
	lat, latErr := ParseCoordinate(e.Latitude, LatitudeAxis)
	lon, lonErr := ParseCoordinate(e.Longitude, LongitudeAxis)
	if err := errors.Join(latErr, lonErr); err != nil {
		if errors.Is(err, ErrMissingCoordinate) {
			return Result{Reason: ReasonNoLocation}
		}
		return Result{Reason: ReasonInvalidCoordinates}
	}

	at := geo.Point{Latitude: lat, Longitude: lon}
	dist := geo.DistanceKm(obs.Location, at)
	res := Result{
		DistanceKm: dist,
		Direction:  geo.BearingCompass(obs.Location, at),
	}
	if dist <= AtmosphericRangeKm {
		res.IsVisible = true
		res.Reason = fmt.Sprintf("visible %s km away", roundKm(dist))
	} else {
		res.Reason = "too far"
	}
	return res
}

func classifyCloseApproach(e CloseApproach) Result {
	tier := TierNormal
	switch {
	case e.DistanceKm < closeApproachHighKm:
		tier = TierHigh
	case e.AbsoluteMagnitude < closeApproachMediumH:
		tier = TierMedium
	}
	return Result{
		IsVisible:  true,
		DistanceKm: e.DistanceKm,
		Reason:     fmt.Sprintf("passes %s km from Earth", roundKm(e.DistanceKm)),
		Tier:       tier,
	}
}

func classifyRisk(e RiskAssessment) Result {
	tier := TierLow
	if e.ImpactProbability > HighRiskProbability {
		tier = TierHigh
	}
	return Result{
		IsVisible: true,
		Reason:    fmt.Sprintf("impact probability %.6f%%", e.ImpactProbability*100),
		Tier:      tier,
	}
}

func classifyMission(e MissionTarget) Result {
	tier := TierGood
	if e.DeltaVKmS < missionExcellentDeltaV {
		tier = TierExcellent
	}
	return Result{
		IsVisible: true,
		Reason:    fmt.Sprintf("accessible with ΔV of %.2f km/s", e.DeltaVKmS),
		Tier:      tier,
	}
}

package visibility

// Category names an Event variant.
type Category string

const (
	CategoryOrbitingPlatform Category = "orbiting_platform"
	CategoryAtmospheric      Category = "atmospheric_event"
	CategoryCloseApproach    Category = "close_approach"
	CategoryRiskAssessment   Category = "risk_assessment"
	CategoryMissionTarget    Category = "mission_target"
)

// Event is the closed set of things Classify understands. The unexported
// method keeps the set closed to this package.
type Event interface {
	Category() Category
	isEvent()
}

// OrbitingPlatform is one position sample of a satellite such as the ISS.
type OrbitingPlatform struct {
	Sample TimestampedPosition
}

// AtmosphericEvent is a bolide report with feed-formatted coordinates,
// e.g. Latitude "45.0°N", Longitude "90.0°W". Empty strings mean the feed
// carried no location.
type AtmosphericEvent struct {
	Latitude  string
	Longitude string
}

// CloseApproach is a small body passing near Earth.
type CloseApproach struct {
	DistanceKm        float64
	AbsoluteMagnitude float64 // H
}

// RiskAssessment is an object on an impact-monitoring list.
type RiskAssessment struct {
	ImpactProbability float64
}

// MissionTarget is a body reachable by a crewed or robotic mission.
type MissionTarget struct {
	DeltaVKmS float64
}

func (OrbitingPlatform) Category() Category { return CategoryOrbitingPlatform }
func (AtmosphericEvent) Category() Category { return CategoryAtmospheric }
func (CloseApproach) Category() Category    { return CategoryCloseApproach }
func (RiskAssessment) Category() Category   { return CategoryRiskAssessment }
func (MissionTarget) Category() Category    { return CategoryMissionTarget }

func (OrbitingPlatform) isEvent() {}
func (AtmosphericEvent) isEvent() {}
func (CloseApproach) isEvent()    {}
func (RiskAssessment) isEvent()   {}
func (MissionTarget) isEvent()    {}

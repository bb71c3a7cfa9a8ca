package propagation

// DefaultNORADID is the International Space Station.
const DefaultNORADID = 25544

// Config holds propagation settings.
type Config struct {
	Workers int // worker pool size
	NORADID int // object tracked by Track
}

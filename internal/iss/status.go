package iss

import "time"

// Status describes how fresh a position report is.
type Status string

const (
	StatusLive    Status = "live"
	StatusRecent  Status = "recent"
	StatusStale   Status = "stale"
	StatusUnknown Status = "unknown"
)

// StatusOf rates a report taken at reportedAt, as seen at now.
func StatusOf(reportedAt, now time.Time) Status {
	if reportedAt.IsZero() {
		return StatusUnknown
	}
	age := now.Sub(reportedAt)
	switch {
	case age < time.Minute:
		return StatusLive
	case age < 5*time.Minute:
		return StatusRecent
	default:
		return StatusStale
	}
}

// Status rates p as seen at now.
func (p Position) Status(now time.Time) Status {
	if p.Timestamp == 0 {
		return StatusUnknown
	}
	return StatusOf(p.Time(), now)
}

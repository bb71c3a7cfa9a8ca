package events

import (
	"errors"
	"time"
)

// ParseRange reads a query range. Bounds are RFC 3339 timestamps or
// YYYY-MM-DD dates; a date-only end covers the whole day. Both bounds empty
// means no range (nil, nil).
func ParseRange(start, end string) (*Range, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("start and end must be given together")
	}
	s, _, err := parseBound(start)
	if err != nil {
		return nil, errors.New("invalid start: use YYYY-MM-DD or RFC 3339")
	}
	e, dateOnly, err := parseBound(end)
	if err != nil {
		return nil, errors.New("invalid end: use YYYY-MM-DD or RFC 3339")
	}
	if dateOnly {
		e = e.Add(24*time.Hour - time.Nanosecond)
	}
	if e.Before(s) {
		return nil, errors.New("end is before start")
	}
	return &Range{Start: s, End: e}, nil
}

func parseBound(s string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t, false, err
}

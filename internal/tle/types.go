// Package tle acquires, parses, caches and holds NORAD two-line element sets.
package tle

import "time"

// Entry is one object's two-line element set.
type Entry struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
	Line1   string    `json:"line1"`
	Line2   string    `json:"line2"`
}

// EpochRange is the span of element epochs in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset is one complete fetch of element sets. Immutable once stored.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Entries    []Entry

	byID map[int]int
}

// NewDataset indexes entries by NORAD ID and computes the epoch range.
// Later duplicates of an ID win.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:    source,
		FetchedAt: fetchedAt,
		Entries:   entries,
		byID:      make(map[int]int, len(entries)),
	}
	for i, e := range entries {
		ds.byID[e.NORADID] = i
		if ds.EpochRange.Min.IsZero() || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Lookup returns the element set for noradID.
func (ds *Dataset) Lookup(noradID int) (Entry, bool) {
	i, ok := ds.byID[noradID]
	if !ok {
		return Entry{}, false
	}
	return ds.Entries[i], true
}

// Metadata summarizes a dataset for the API.
type Metadata struct {
	Source     string     `json:"source"`
	FetchedAt  time.Time  `json:"fetched_at"`
	AgeSeconds float64    `json:"age_seconds"`
	Count      int        `json:"count"`
	EpochRange EpochRange `json:"epoch_range"`
}

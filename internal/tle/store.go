package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes refreshes
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Lookup finds noradID in the current dataset.
func (s *Store) Lookup(noradID int) (Entry, bool) {
	ds := s.dataset.Load()
	if ds == nil {
		return Entry{}, false
	}
	return ds.Lookup(noradID)
}

// Age returns the age of the current dataset, or -1 if none is loaded.
func (s *Store) Age() time.Duration {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt)
}

// Metadata describes the current dataset. ok is false if none is loaded.
func (s *Store) Metadata() (Metadata, bool) {
	ds := s.dataset.Load()
	if ds == nil {
		return Metadata{}, false
	}
	return Metadata{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt,
		AgeSeconds: time.Since(ds.FetchedAt).Seconds(),
		Count:      len(ds.Entries),
		EpochRange: ds.EpochRange,
	}, true
}

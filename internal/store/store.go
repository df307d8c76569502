// v0
// internal/store/store.go

// Package store holds the latest sensor reading shared between the
// acquisition loop and the HTTP handlers.
package store

import (
	"sync"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// Store is a single-slot holder for the most recent reading. One writer and
// any number of readers may use it concurrently; a reader always gets a
// whole Reading copied out under the lock, never a partially written one.
type Store struct {
	mu      sync.RWMutex
	latest  sensor.Reading
	present bool
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Set replaces the stored reading.
func (s *Store) Set(r sensor.Reading) {
	s.mu.Lock()
	s.latest = r
	s.present = true
	s.mu.Unlock()
}

// Get returns the latest reading, or false when nothing was ever stored.
func (s *Store) Get() (sensor.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.present
}

// Age reports how old the stored reading is relative to now.
func (s *Store) Age(now time.Time) (time.Duration, bool) {
	r, ok := s.Get()
	if !ok {
		return 0, false
	}
	return age(r, now), true
}

func age(r sensor.Reading, now time.Time) time.Duration {
	return now.Sub(r.ObservedAt)
}

// Status classifies a Snapshot.
type Status int

const (
	Empty Status = iota
	Fresh
	Stale
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "empty"
	}
}

// Snapshot returns the latest reading together with its status at now. A
// reading older than maxAge is Stale; maxAge <= 0 disables the check.
func (s *Store) Snapshot(now time.Time, maxAge time.Duration) (sensor.Reading, Status) {
	r, ok := s.Get()
	switch {
	case !ok:
		return sensor.Reading{}, Empty
	case maxAge > 0 && age(r, now) > maxAge:
		return r, Stale
	default:
		return r, Fresh
	}
}

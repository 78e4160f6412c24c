// Package tripcontext holds the upstream inputs produced by the earlier
// wizard step: trip date, starting point and starting location.
package tripcontext

import (
	"sync"
	"time"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// LocationListener is called after the starting location changed value.
type LocationListener func(models.TripContext)

// Store is a read/write holder with no validation of its own.
type Store struct {
	mu        sync.RWMutex
	ctx       models.TripContext
	listeners []LocationListener
}

func NewStore() *Store {
	return &Store{}
}

// OnLocationChange registers fn to run whenever SetStartingLocation stores a
// different value. Listeners run synchronously on the setter's goroutine,
// outside the store lock.
func (s *Store) OnLocationChange(fn LocationListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) SetTripDate(d *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil {
		s.ctx.TripDate = nil
		return
	}
	day := *d
	s.ctx.TripDate = &day
}

func (s *Store) SetStartingPoint(point string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.StartingPoint = point
}

func (s *Store) SetInputLocation(input string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.InputLocation = input
}

// SetStartingLocation stores loc and notifies listeners when the value
// differs from the previous one. It reports whether a change happened.
func (s *Store) SetStartingLocation(loc *models.Location) bool {
	s.mu.Lock()
	if models.SameLocation(s.ctx.StartingLocation, loc) {
		s.mu.Unlock()
		return false
	}
	if loc == nil {
		s.ctx.StartingLocation = nil
	} else {
		l := *loc
		s.ctx.StartingLocation = &l
	}
	snapshot := s.snapshotLocked()
	listeners := append([]LocationListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}

// Snapshot returns a copy of the current context.
func (s *Store) Snapshot() models.TripContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.TripContext {
	out := s.ctx
	if s.ctx.TripDate != nil {
		d := *s.ctx.TripDate
		out.TripDate = &d
	}
	if s.ctx.StartingLocation != nil {
		l := *s.ctx.StartingLocation
		out.StartingLocation = &l
	}
	return out
}

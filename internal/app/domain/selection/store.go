// Package selection holds the set of places the user has committed to in the
// planner step.
package selection

import (
	"sync"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// Store is a set of places keyed by name. Iteration follows insertion order.
type Store struct {
	mu    sync.RWMutex
	index map[string]int
	items []models.Place
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Add inserts place unless a place with the same name is already selected.
// It reports whether the set changed.
func (s *Store) Add(place models.Place) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[place.Name]; ok {
		return false
	}
	s.index[place.Name] = len(s.items)
	s.items = append(s.items, place)
	return true
}

// Remove drops the place with the given name; absent names are a no-op.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Store) removeLocked(name string) bool {
	i, ok := s.index[name]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].Name] = j
	}
	return true
}

func (s *Store) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok
}

// ToggleFor removes place if it is selected and adds it otherwise. It
// returns true when the place ends up selected.
func (s *Store) ToggleFor(place models.Place) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(place.Name) {
		return false
	}
	s.index[place.Name] = len(s.items)
	s.items = append(s.items, place)
	return true
}

// List returns the selected places in insertion order.
func (s *Store) List() []models.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Place, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = make(map[string]int)
}

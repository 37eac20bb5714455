// Package selection tracks the single media item opened for full-size viewing.
package selection

import (
	"sync"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// State holds at most one selected item.
type State struct {
	mu   sync.Mutex
	item *models.MediaItem
}

// Select replaces the current selection with item.
func (s *State) Select(item models.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.item = &item
}

// Clear drops the selection.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.item = nil
}

// Current returns the selected item, if any.
func (s *State) Current() (models.MediaItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.item == nil {
		return models.MediaItem{}, false
	}
	return *s.item, true
}

// Reconcile clears the selection when its item is missing from items, and
// otherwise refreshes it to the item's latest version.
func (s *State) Reconcile(items []models.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.item == nil {
		return
	}
	for _, it := range items {
		if it.ID == s.item.ID {
			latest := it
			s.item = &latest
			return
		}
	}
	s.item = nil
}

// Package feedview turns the stream of full snapshots into the filterable
// view shown to the student.
package feedview

import (
	"fmt"
	"sync"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// Filter selects which kinds of items the view shows.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterPhoto Filter = "photo"
	FilterVideo Filter = "video"
)

// ParseFilter validates s as a Filter.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterAll, FilterPhoto, FilterVideo:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q: want all, photo or video", s)
	}
}

func (f Filter) match(it models.MediaItem) bool {
	switch f {
	case FilterPhoto:
		return it.Kind == models.KindPhoto
	case FilterVideo:
		return it.Kind == models.KindVideo
	default:
		return true
	}
}

// View is the derived, filtered view of the feed.
type View struct {
	Items   []models.MediaItem
	Filter  Filter
	Photos  int
	Videos  int
	Total   int
	Loading bool
	Errored bool
	// Reason describes the last subscription error while Errored.
	Reason error
}

// State holds the latest snapshot, the filter and the status flags.
type State struct {
	mu      sync.Mutex
	items   []models.MediaItem
	filter  Filter
	loading bool
	errored bool
	reason  error
}

// New returns an empty, loading state showing all items.
func New() *State {
	return &State{filter: FilterAll, loading: true}
}

// OnSnapshot replaces the held items with items.
func (s *State) OnSnapshot(items []models.MediaItem) {
	held := make([]models.MediaItem, len(items))
	copy(held, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = held
	s.loading = false
	s.errored = false
	s.reason = nil
}

// OnError marks the view errored. The last snapshot stays visible.
func (s *State) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.errored = true
	s.reason = err
}

// SetFilter changes the filter. It never touches the held items.
func (s *State) SetFilter(f Filter) error {
	if _, err := ParseFilter(string(f)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	return nil
}

// Reset drops the held items. loading reports whether a new subscription
// is on its way.
func (s *State) Reset(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.loading = loading
	s.errored = false
	s.reason = nil
}

// Items returns a copy of the unfiltered items.
func (s *State) Items() []models.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MediaItem, len(s.items))
	copy(out, s.items)
	return out
}

// DerivedView computes the filtered view. Counts cover the unfiltered set.
func (s *State) DerivedView() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Items:   []models.MediaItem{},
		Filter:  s.filter,
		Total:   len(s.items),
		Loading: s.loading,
		Errored: s.errored,
		Reason:  s.reason,
	}
	for _, it := range s.items {
		switch it.Kind {
		case models.KindPhoto:
			v.Photos++
		case models.KindVideo:
			v.Videos++
		}
		if s.filter.match(it) {
			v.Items = append(v.Items, it)
		}
	}
	return v
}

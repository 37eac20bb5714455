package livequery

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// ErrClosed is returned by Next once the subscriber was removed from the hub.
var ErrClosed = errors.New("subscription closed")

// Update is one delivery: either a complete snapshot or a terminal error.
type Update struct {
	// Seq orders updates of one hub; a larger Seq reflects a later read.
	Seq   uint64
	Items []models.MediaItem
	Err   error
}

// Subscriber is one standing query. It keeps only the latest pending update:
// a slow reader skips intermediate snapshots but always sees the newest one.
type Subscriber struct {
	ID    string
	Owner string

	mu       sync.Mutex
	latest   *Update
	lastSeen uint64
	closed   bool
	ready    chan struct{}
	done     chan struct{}
}

func newSubscriber(id, owner string) *Subscriber {
	return &Subscriber{
		ID:    id,
		Owner: owner,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// offer stores u unless a newer update is already pending or was delivered.
func (s *Subscriber) offer(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || u.Seq <= s.lastSeen {
		return false
	}
	if s.latest != nil && s.latest.Seq >= u.Seq {
		return false
	}
	s.latest = &u
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an update is pending, ctx is done or the subscriber is closed.
func (s *Subscriber) Next(ctx context.Context) (Update, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Update{}, ErrClosed
		}
		if s.latest != nil {
			u := *s.latest
			s.latest = nil
			s.lastSeen = u.Seq
			s.mu.Unlock()
			return u, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-s.done:
		case <-s.ready:
		}
	}
}

// Done is closed when the subscriber is removed from the hub.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.latest = nil
	close(s.done)
}

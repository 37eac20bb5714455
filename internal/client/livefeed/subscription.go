// Package livefeed binds the signed-in student to a live, owner-scoped view
// of the media collection.
//
// A Subscription owns at most one watch on a LiveQuery collaborator. Every
// Open and Close starts a new generation; callbacks created under an older
// generation are dropped, both when they fire and again on the consumer's
// thread, so a closed or replaced watch can never reach the consumer.
package livefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// State of a Subscription.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateActive
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LiveQuery is the standing-query collaborator.
//
// Watch starts a standing query for ownerID and returns once the collaborator
// acknowledged it. onSnapshot receives complete snapshots; onError ends the
// watch. stop must be called exactly once for every successful Watch.
type LiveQuery interface {
	Watch(ctx context.Context, ownerID string,
		onSnapshot func([]models.MediaItem), onError func(error)) (stop func(), err error)
}

// Consumer receives deliveries on the thread chosen by Dispatch.
type Consumer interface {
	OnSnapshot(items []models.MediaItem)
	OnError(err error)
}

// Dispatch runs fn on the consumer's thread. It must not block.
type Dispatch func(fn func())

// Subscription is the handle to the live feed of one owner.
type Subscription struct {
	query    LiveQuery
	consumer Consumer
	dispatch Dispatch
	log      *zap.Logger

	// applyMu is held while a delivery runs on the consumer's thread.
	applyMu sync.Mutex

	mu    sync.Mutex
	state State
	owner string
	gen   uint64
	stop  func()
}

// New returns a closed Subscription. A nil dispatch delivers inline.
func New(query LiveQuery, consumer Consumer, dispatch Dispatch, log *zap.Logger) *Subscription {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscription{query: query, consumer: consumer, dispatch: dispatch, log: log}
}

// Open starts the live feed of ownerID.
//
// Opening the owner that is already opening or active is a no-op. Opening a
// different owner stops the current watch first. A failed acknowledgement
// leaves the subscription Errored, notifies the consumer and returns an error
// wrapping models.ErrSubscription.
func (s *Subscription) Open(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return errors.New("open requires an owner id")
	}

	s.mu.Lock()
	if s.owner == ownerID && (s.state == StateOpening || s.state == StateActive) {
		s.mu.Unlock()
		return nil
	}
	old := s.stop
	s.stop = nil
	s.gen++
	gen := s.gen
	s.state = StateOpening
	s.owner = ownerID
	s.mu.Unlock()
	s.barrier()

	if old != nil {
		old()
	}

	stop, err := s.query.Watch(ctx, ownerID,
		func(items []models.MediaItem) { s.deliver(gen, ownerID, items) },
		func(err error) { s.fail(gen, err) },
	)

	s.mu.Lock()
	if s.gen != gen {
		// Closed or replaced while waiting for the acknowledgement.
		s.mu.Unlock()
		if err == nil {
			stop()
		}
		return nil
	}
	if err != nil {
		s.state = StateErrored
		s.mu.Unlock()
		err = wrapSubscription(err)
		s.log.Warn("live feed open failed", zap.String("owner", ownerID), zap.Error(err))
		s.post(gen, func() { s.consumer.OnError(err) })
		return err
	}
	s.stop = stop
	if s.state == StateOpening {
		s.state = StateActive
	}
	s.mu.Unlock()
	return nil
}

// Close stops the current watch and waits for the collaborator to release
// it. After Close returns no callback of the closed watch reaches the
// consumer. Closing a closed subscription does nothing. Close and Open must
// not be called from a Consumer method.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.gen++
	stop := s.stop
	s.stop = nil
	s.state = StateClosed
	s.owner = ""
	s.mu.Unlock()
	s.barrier()

	if stop != nil {
		stop()
	}
}

// State returns the current state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Owner returns the owner of the current watch, or "" when closed.
func (s *Subscription) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Generation returns the current generation.
func (s *Subscription) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Subscription) deliver(gen uint64, ownerID string, items []models.MediaItem) {
	if err := models.CheckOwner(ownerID, items); err != nil {
		s.fail(gen, err)
		return
	}
	snapshot := make([]models.MediaItem, len(items))
	copy(snapshot, items)
	models.SortSnapshot(snapshot)

	s.mu.Lock()
	if s.gen != gen || s.state == StateErrored || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateActive
	s.mu.Unlock()

	s.post(gen, func() { s.consumer.OnSnapshot(snapshot) })
}

func (s *Subscription) fail(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || s.state == StateErrored || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	owner := s.owner
	s.mu.Unlock()

	err = wrapSubscription(err)
	s.log.Warn("live feed failed", zap.String("owner", owner), zap.Error(err))
	s.post(gen, func() { s.consumer.OnError(err) })
}

// post hands fn to the consumer's thread and re-checks the generation there.
func (s *Subscription) post(gen uint64, fn func()) {
	s.dispatch(func() {
		s.applyMu.Lock()
		defer s.applyMu.Unlock()

		s.mu.Lock()
		current := s.gen == gen
		s.mu.Unlock()
		if current {
			fn()
		}
	})
}

// barrier waits for a delivery that passed its generation check to finish.
func (s *Subscription) barrier() {
	s.applyMu.Lock()
	s.applyMu.Unlock()
}

func wrapSubscription(err error) error {
	if errors.Is(err, models.ErrSubscription) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrSubscription, err)
}

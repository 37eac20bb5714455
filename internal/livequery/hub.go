// Package livequery keeps standing owner-scoped queries over the media
// collection and pushes a complete snapshot to every subscriber of an owner
// whenever that owner's items change.
package livequery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/changes"
	"github.com/atinyakov/ClassFeed/internal/models"
)

// Snapshotter computes owner-scoped snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context, ownerID string) ([]models.MediaItem, error)
	Snapshots(ctx context.Context, ownerIDs []string) (map[string][]models.MediaItem, error)
}

// Hub fans snapshots out to subscribers grouped by owner.
type Hub struct {
	feed    Snapshotter
	log     *zap.Logger
	metrics *metrics

	seq atomic.Uint64

	mu     sync.Mutex
	owners map[string]map[string]*Subscriber
	closed bool

	// dirty owners waiting for the refresh worker; "" stands for all owners.
	dirtyMu sync.Mutex
	dirty   map[string]struct{}
	wake    chan struct{}
}

// NewHub creates a hub. Metrics are registered on reg when it is not nil.
func NewHub(feed Snapshotter, log *zap.Logger, reg prometheus.Registerer) *Hub {
	return &Hub{
		feed:    feed,
		log:     log,
		metrics: newMetrics(reg),
		owners:  make(map[string]map[string]*Subscriber),
		dirty:   make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Subscribe opens a standing query for ownerID and queues its initial
// snapshot. The caller must Unsubscribe exactly once.
func (h *Hub) Subscribe(ctx context.Context, ownerID string) (*Subscriber, error) {
	if ownerID == "" {
		return nil, errors.New("subscribe requires an owner id")
	}
	sub := newSubscriber(uuid.NewString(), ownerID)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	subs, ok := h.owners[ownerID]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.owners[ownerID] = subs
	}
	subs[sub.ID] = sub
	h.mu.Unlock()
	h.metrics.active.Inc()

	// Registered before the read so that a change racing with this snapshot
	// still reaches the subscriber through the worker.
	seq := h.seq.Add(1)
	items, err := h.feed.Snapshot(ctx, ownerID)
	if err != nil {
		h.Unsubscribe(sub)
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}
	if sub.offer(Update{Seq: seq, Items: items}) {
		h.metrics.pushed.Inc()
	}
	h.log.Debug("subscriber added",
		zap.String("subscriber", sub.ID),
		zap.String("owner", ownerID),
		zap.Int("items", len(items)),
	)
	return sub, nil
}

// Unsubscribe removes sub. Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	subs, ok := h.owners[sub.Owner]
	_, present := subs[sub.ID]
	if ok && present {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.owners, sub.Owner)
		}
	}
	h.mu.Unlock()

	if present {
		h.metrics.active.Dec()
	}
	sub.close()
}

// Notify marks ownerID as changed. An empty owner id marks every owner.
// It never blocks; the refresh itself happens on the Run worker.
func (h *Hub) Notify(ownerID string) {
	h.dirtyMu.Lock()
	h.dirty[ownerID] = struct{}{}
	h.dirtyMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Owners returns the owners that currently have subscribers, sorted.
func (h *Hub) Owners() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.owners))
	for owner := range h.owners {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// Run consumes notifications from src and refreshes dirty owners until ctx
// is done. A non-zero interval also refreshes every owner periodically so
// that a lost notification delays an update instead of dropping it.
func (h *Hub) Run(ctx context.Context, src changes.Source, interval time.Duration) error {
	errc := make(chan error, 1)
	if src != nil {
		go func() { errc <- src.Run(ctx, h.Notify) }()
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return nil
		case err := <-errc:
			h.Close()
			if err != nil {
				return fmt.Errorf("change source: %w", err)
			}
			return nil
		case <-tick:
			h.Notify("")
		case <-h.wake:
			h.flush(ctx)
		}
	}
}

// flush refreshes every dirty owner once.
func (h *Hub) flush(ctx context.Context) {
	h.dirtyMu.Lock()
	dirty := h.dirty
	h.dirty = make(map[string]struct{})
	h.dirtyMu.Unlock()

	var owners []string
	if _, all := dirty[""]; all {
		owners = h.Owners()
	} else {
		h.mu.Lock()
		for owner := range dirty {
			if _, ok := h.owners[owner]; ok {
				owners = append(owners, owner)
			}
		}
		h.mu.Unlock()
		sort.Strings(owners)
	}
	if len(owners) == 0 {
		return
	}
	h.refresh(ctx, owners)
}

func (h *Hub) refresh(ctx context.Context, owners []string) {
	seq := h.seq.Add(1)

	var snaps map[string][]models.MediaItem
	var err error
	if len(owners) == 1 {
		var items []models.MediaItem
		items, err = h.feed.Snapshot(ctx, owners[0])
		snaps = map[string][]models.MediaItem{owners[0]: items}
	} else {
		snaps, err = h.feed.Snapshots(ctx, owners)
	}

	if err != nil {
		// Every affected feed ends with the error. A snapshot that mixes
		// owners is never shipped.
		h.metrics.refreshErrors.Inc()
		if errors.Is(err, models.ErrForeignItem) {
			h.log.Error("snapshot crossed owners, closing feeds", zap.Strings("owners", owners), zap.Error(err))
		} else {
			h.log.Warn("snapshot refresh failed, closing feeds", zap.Strings("owners", owners), zap.Error(err))
		}
		for _, owner := range owners {
			h.deliver(owner, Update{Seq: seq, Err: err})
		}
		return
	}

	for owner, items := range snaps {
		h.deliver(owner, Update{Seq: seq, Items: items})
	}
}

func (h *Hub) deliver(owner string, u Update) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.owners[owner]))
	for _, s := range h.owners[owner] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if s.offer(u) {
			h.metrics.pushed.Inc()
		}
	}
}

// Close removes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscriber
	for _, subs := range h.owners {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.owners = make(map[string]map[string]*Subscriber)
	h.mu.Unlock()

	for _, s := range all {
		h.metrics.active.Dec()
		s.close()
	}
}

// Package dashboard is the client's owner of the live feed. One event loop
// applies every change to the feed view, the selection and the session, so
// subscription callbacks and user commands never interleave.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/client/feedview"
	"github.com/atinyakov/ClassFeed/internal/client/livefeed"
	"github.com/atinyakov/ClassFeed/internal/client/selection"
	"github.com/atinyakov/ClassFeed/internal/client/verifier"
	"github.com/atinyakov/ClassFeed/internal/models"
)

// ErrStopped is returned by calls made after Run returned.
var ErrStopped = errors.New("dashboard stopped")

// ErrNotSignedIn is returned by operations that need a session.
var ErrNotSignedIn = errors.New("not signed in")

// ErrNoSuchItem is returned by Select for ids missing from the feed.
var ErrNoSuchItem = errors.New("item not in feed")

// Verifier checks credentials.
type Verifier interface {
	Verify(ctx context.Context, id, secret string) (*verifier.Result, error)
}

// SessionStore keeps the signed-in identity.
type SessionStore interface {
	Login(identity models.Identity, role models.Role, token string) error
	Logout() error
	Current() (models.Identity, models.Role, bool)
}

// Snapshot is everything the dashboard shows at one point in time.
type Snapshot struct {
	Identity     models.Identity
	Role         models.Role
	SignedIn     bool
	Feed         feedview.View
	Selected     *models.MediaItem
	Subscription livefeed.State
}

// Dashboard wires the session, the subscription and the local view state.
type Dashboard struct {
	verifier Verifier
	session  SessionStore
	sub      *livefeed.Subscription
	feed     *feedview.State
	sel      *selection.State
	log      *zap.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
}

// New creates a dashboard watching feeds through query.
func New(v Verifier, session SessionStore, query livefeed.LiveQuery, log *zap.Logger) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dashboard{
		verifier: v,
		session:  session,
		feed:     feedview.New(),
		sel:      &selection.State{},
		log:      log,
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	d.feed.Reset(false)
	d.sub = livefeed.New(query, consumer{d}, d.post, log)
	return d
}

// Run executes posted work until ctx is done, then closes the subscription.
// It must be called exactly once.
func (d *Dashboard) Run(ctx context.Context) error {
	defer close(d.stopped)
	defer d.sub.Close()

	for {
		d.mu.Lock()
		work := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range work {
			fn()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
		}
	}
}

// post queues fn on the event loop. It never blocks.
func (d *Dashboard) post(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// do runs fn on the event loop and waits for it.
func (d *Dashboard) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	d.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
}

// Login verifies the credentials, stores the session and opens the live
// feed of the identity. A rejected login leaves the session untouched.
// A subscription failure is returned, but the student stays signed in.
func (d *Dashboard) Login(ctx context.Context, id, secret string) error {
	res, err := d.verifier.Verify(ctx, id, secret)
	if err != nil {
		return err
	}

	if err := d.teardown(ctx, true); err != nil {
		return err
	}
	if err := d.session.Login(res.Identity, res.Role, res.Token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	d.log.Info("signed in", zap.String("student", res.Identity.ID))
	return d.sub.Open(ctx, res.Identity.ID)
}

// Resume opens the live feed of a session restored from disk.
func (d *Dashboard) Resume(ctx context.Context) error {
	identity, _, ok := d.session.Current()
	if !ok {
		return ErrNotSignedIn
	}
	if d.sub.Owner() == identity.ID && d.sub.State() == livefeed.StateActive {
		return nil
	}
	if err := d.teardown(ctx, true); err != nil {
		return err
	}
	return d.sub.Open(ctx, identity.ID)
}

// Logout closes the live feed, clears the view and the session.
func (d *Dashboard) Logout(ctx context.Context) error {
	if err := d.teardown(ctx, false); err != nil {
		return err
	}
	return d.session.Logout()
}

// teardown closes the subscription and then clears local state on the loop.
// Closing first guarantees no callback of the old feed lands after the reset.
func (d *Dashboard) teardown(ctx context.Context, loading bool) error {
	d.sub.Close()
	return d.do(ctx, func() {
		d.feed.Reset(loading)
		d.sel.Clear()
	})
}

// SetFilter changes the type filter. The subscription is not touched.
func (d *Dashboard) SetFilter(ctx context.Context, filter string) error {
	f, err := feedview.ParseFilter(filter)
	if err != nil {
		return err
	}
	var setErr error
	if err := d.do(ctx, func() { setErr = d.feed.SetFilter(f) }); err != nil {
		return err
	}
	return setErr
}

// Select expands the item with itemID. It must be part of the current feed.
func (d *Dashboard) Select(ctx context.Context, itemID string) (models.MediaItem, error) {
	var (
		found models.MediaItem
		ok    bool
	)
	err := d.do(ctx, func() {
		for _, it := range d.feed.Items() {
			if it.ID == itemID {
				found, ok = it, true
				d.sel.Select(it)
				return
			}
		}
	})
	if err != nil {
		return models.MediaItem{}, err
	}
	if !ok {
		return models.MediaItem{}, fmt.Errorf("item %q: %w", itemID, ErrNoSuchItem)
	}
	return found, nil
}

// ClearSelection collapses the expanded item.
func (d *Dashboard) ClearSelection(ctx context.Context) error {
	return d.do(ctx, d.sel.Clear)
}

// View returns what the dashboard currently shows.
func (d *Dashboard) View(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := d.do(ctx, func() {
		snap.Identity, snap.Role, snap.SignedIn = d.session.Current()
		snap.Feed = d.feed.DerivedView()
		if it, ok := d.sel.Current(); ok {
			snap.Selected = &it
		}
		snap.Subscription = d.sub.State()
	})
	return snap, err
}

// Status returns the state of the live feed.
func (d *Dashboard) Status() livefeed.State {
	return d.sub.State()
}

// Explain turns an error of any dashboard operation into a message for the
// student. Each failure class has its own message.
func Explain(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrWrongSecret):
		return "Invalid password."
	case errors.Is(err, models.ErrSessionExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, models.ErrForeignItem):
		return "The feed contained items that are not yours and was stopped. Please sign in again."
	case errors.Is(err, models.ErrBackendUnavailable):
		return "The service is not set up yet. Please contact your administrator."
	case errors.Is(err, models.ErrSubscription):
		return "Live updates stopped. Showing the last loaded feed."
	case errors.Is(err, models.ErrNotFound):
		return "Student ID not found."
	case errors.Is(err, ErrNoSuchItem):
		return "That item is not in your feed."
	case errors.Is(err, ErrNotSignedIn):
		return "Please sign in first."
	case errors.Is(err, ErrStopped):
		return "The dashboard has shut down."
	default:
		return err.Error()
	}
}

// consumer applies subscription deliveries. It runs on the event loop.
type consumer struct {
	d *Dashboard
}

func (c consumer) OnSnapshot(items []models.MediaItem) {
	c.d.feed.OnSnapshot(items)
	c.d.sel.Reconcile(items)
}

func (c consumer) OnError(err error) {
	c.d.feed.OnError(err)
}

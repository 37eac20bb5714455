package changes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeListener struct {
	notes     chan *pq.Notification
	listenErr error
	channel   string
	closed    bool
	mu        sync.Mutex
}

func (f *fakeListener) Listen(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = channel
	return f.listenErr
}
func (f *fakeListener) NotificationChannel() <-chan *pq.Notification { return f.notes }
func (f *fakeListener) Ping() error                                  { return nil }
func (f *fakeListener) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type recorder struct {
	mu     sync.Mutex
	owners []string
}

func (r *recorder) handle(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, owner)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.owners...)
}

func TestOwnerFromPayload(t *testing.T) {
	cases := map[string]struct {
		owner string
		ok    bool
	}{
		"S100":     {"S100", true},
		"  S100\n": {"S100", true},
		"":         {"", false},
		"S1 S2":    {"", false},
	}
	for in, want := range cases {
		owner, ok := ownerFromPayload(in)
		assert.Equal(t, want.owner, owner, in)
		assert.Equal(t, want.ok, ok, in)
	}
}

func TestPostgresSource_Dispatch(t *testing.T) {
	fl := &fakeListener{notes: make(chan *pq.Notification, 4)}
	src := NewPostgresSource("", "media_changed", zap.NewNop())
	src.open = func() listener { return fl }

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, rec.handle) }()

	fl.notes <- &pq.Notification{Channel: "media_changed", Extra: "S100"}
	fl.notes <- &pq.Notification{Channel: "media_changed", Extra: "bad payload"}
	fl.notes <- nil
	fl.notes <- &pq.Notification{Channel: "media_changed", Extra: "S200"}

	require.Eventually(t, func() bool { return len(rec.got()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"S100", "", "S200"}, rec.got())
	assert.Equal(t, "media_changed", fl.channel)
	assert.True(t, fl.closed)
}

func TestPostgresSource_ListenError(t *testing.T) {
	fl := &fakeListener{notes: make(chan *pq.Notification), listenErr: errors.New("no connection")}
	src := NewPostgresSource("", "media_changed", zap.NewNop())
	src.open = func() listener { return fl }

	err := src.Run(context.Background(), func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen media_changed")
	assert.True(t, fl.closed)
}

func TestPostgresSource_ChannelClosed(t *testing.T) {
	fl := &fakeListener{notes: make(chan *pq.Notification)}
	close(fl.notes)
	src := NewPostgresSource("", "media_changed", zap.NewNop())
	src.open = func() listener { return fl }

	err := src.Run(context.Background(), func(string) {})
	assert.Error(t, err)
}

func TestRedisSource_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	src := NewRedisSource(client, "media:changed", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := src.Run(ctx, func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe media:changed")
}

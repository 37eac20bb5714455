package livefeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/models"
)

const streamPath = "/api/feed/stream"

// frame mirrors the server's stream messages.
type frame struct {
	Type   string             `json:"type"`
	Seq    uint64             `json:"seq"`
	Items  []models.MediaItem `json:"items"`
	Code   string             `json:"code"`
	Reason string             `json:"reason"`
}

// WSQuery is a LiveQuery over the server's websocket feed stream.
type WSQuery struct {
	// BaseURL is the server's http(s) base URL.
	BaseURL string
	// Token returns the access token sent with every dial.
	Token func() string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Retries bounds the dial attempts after the first one.
	Retries uint64
	// AckTimeout bounds the wait for the first frame.
	AckTimeout time.Duration
	Log        *zap.Logger
}

// Watch dials the feed stream and waits for the first frame. The server
// derives the owner from the token; ownerID is only used to label logs.
func (q *WSQuery) Watch(ctx context.Context, ownerID string,
	onSnapshot func([]models.MediaItem), onError func(error)) (func(), error) {
	log := q.logger().With(zap.String("owner", ownerID))

	conn, err := q.dial(ctx)
	if err != nil {
		return nil, err
	}

	first, err := q.readAck(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		onSnapshot(first.Items)
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				if readCtx.Err() == nil {
					onError(fmt.Errorf("feed stream: %w", err))
				}
				return
			}
			if f.Type != "snapshot" {
				onError(frameError(f))
				return
			}
			log.Debug("snapshot received", zap.Uint64("seq", f.Seq), zap.Int("items", len(f.Items)))
			onSnapshot(f.Items)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			<-done
			log.Debug("feed stream stopped")
		})
	}
	return stop, nil
}

func (q *WSQuery) dial(ctx context.Context) (*websocket.Conn, error) {
	url, err := streamURL(q.BaseURL)
	if err != nil {
		return nil, err
	}
	dialer := q.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	var conn *websocket.Conn
	op := func() error {
		header := http.Header{}
		if q.Token != nil {
			header.Set("Authorization", "Bearer "+q.Token())
		}
		c, resp, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil {
				switch resp.StatusCode {
				case http.StatusUnauthorized, http.StatusForbidden:
					return backoff.Permanent(fmt.Errorf("feed stream rejected token: %w: %w",
						models.ErrSubscription, models.ErrSessionExpired))
				}
			}
			q.logger().Debug("feed stream dial failed", zap.Error(err))
			return fmt.Errorf("dial feed stream: %v: %w", err, models.ErrBackendUnavailable)
		}
		conn = c
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, q.Retries), ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

func (q *WSQuery) readAck(conn *websocket.Conn) (frame, error) {
	timeout := q.AckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return frame{}, fmt.Errorf("waiting for acknowledgement: %v: %w", err, models.ErrSubscription)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if f.Type != "snapshot" {
		return frame{}, frameError(f)
	}
	return f, nil
}

func (q *WSQuery) logger() *zap.Logger {
	if q.Log == nil {
		return zap.NewNop()
	}
	return q.Log
}

func frameError(f frame) error {
	reason := f.Reason
	if reason == "" {
		reason = "unexpected frame " + f.Type
	}
	switch f.Code {
	case "unavailable":
		return fmt.Errorf("%w: %w: %s", models.ErrSubscription, models.ErrBackendUnavailable, reason)
	case "foreign_item":
		return fmt.Errorf("%w: %w: %s", models.ErrSubscription, models.ErrForeignItem, reason)
	case "expired":
		return fmt.Errorf("%w: %w: %s", models.ErrSubscription, models.ErrSessionExpired, reason)
	default:
		return fmt.Errorf("%w: %s", models.ErrSubscription, reason)
	}
}

func streamURL(base string) (string, error) {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + streamPath, nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + streamPath, nil
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
		return base + streamPath, nil
	default:
		return "", errors.New("server url must start with http:// or https://")
	}
}

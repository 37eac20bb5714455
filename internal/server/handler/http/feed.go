package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/livequery"
	"github.com/atinyakov/ClassFeed/internal/middleware"
	"github.com/atinyakov/ClassFeed/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame types sent over the feed stream.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Error codes of error frames.
const (
	CodeUnavailable = "unavailable"
	CodeForeignItem = "foreign_item"
	CodeClosed      = "closed"
	CodeFailed      = "failed"
	CodeExpired     = "expired"
)

// Frame is one message of the feed stream. The first frame of a stream is
// either the initial snapshot or an error.
type Frame struct {
	Type   string             `json:"type"`
	Seq    uint64             `json:"seq,omitempty"`
	Items  []models.MediaItem `json:"items,omitempty"`
	Code   string             `json:"code,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

// LiveHub defines the subscription operations the stream handler needs.
type LiveHub interface {
	Subscribe(ctx context.Context, ownerID string) (*livequery.Subscriber, error)
	Unsubscribe(sub *livequery.Subscriber)
}

// ItemService looks up single items for an owner.
type ItemService interface {
	Item(ctx context.Context, ownerID, id string) (*models.MediaItem, error)
}

// FeedHandler serves the live feed stream and item lookups.
type FeedHandler struct {
	Hub      LiveHub
	Items    ItemService
	Log      *zap.Logger
	Upgrader websocket.Upgrader
}

// Stream handles GET /api/feed/stream.
//
// The owner of the standing query is always the authenticated student; the
// request carries no other owner id. The stream ends with an expired error
// frame once the access token runs out.
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserIDFromContext(r.Context())
	if owner == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.Hub.Subscribe(ctx, owner)
	if err != nil {
		h.logger().Warn("subscribe failed", zap.String("owner", owner), zap.Error(err))
		_ = writeFrame(conn, errorFrame(0, err))
		return
	}
	defer h.Hub.Unsubscribe(sub)

	log := h.logger().With(zap.String("owner", owner), zap.String("subscriber", sub.ID))
	log.Info("feed stream opened")
	defer log.Info("feed stream closed")

	var expired <-chan time.Time
	if exp, ok := middleware.GetTokenExpiryFromContext(r.Context()); ok {
		timer := time.NewTimer(time.Until(exp))
		defer timer.Stop()
		expired = timer.C
	}

	go readPump(conn, cancel)

	updates := make(chan livequery.Update)
	go func() {
		defer close(updates)
		for {
			u, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				_ = writeFrame(conn, Frame{Type: FrameError, Code: CodeClosed, Reason: "subscription closed"})
				return
			}
			if u.Err != nil {
				_ = writeFrame(conn, errorFrame(u.Seq, u.Err))
				return
			}
			items := u.Items
			if items == nil {
				items = []models.MediaItem{}
			}
			if err := writeFrame(conn, Frame{Type: FrameSnapshot, Seq: u.Seq, Items: items}); err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		case <-expired:
			log.Info("access token expired, closing feed stream")
			_ = writeFrame(conn, Frame{Type: FrameError, Code: CodeExpired, Reason: "access token expired"})
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Item handles GET /api/media/{id}.
func (h *FeedHandler) Item(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if owner == "" || id == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	item, err := h.Items.Item(r.Context(), owner, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case errors.Is(err, models.ErrBackendUnavailable):
		h.logger().Error("item lookup failed", zap.String("id", id), zap.Error(err))
		http.Error(w, "Service is not set up", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func (h *FeedHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// readPump drains client frames so pongs and close messages are handled,
// and cancels the stream when the connection goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func errorFrame(seq uint64, err error) Frame {
	f := Frame{Type: FrameError, Seq: seq}
	switch {
	case errors.Is(err, models.ErrForeignItem):
		f.Code, f.Reason = CodeForeignItem, "feed contained items of another student"
	case errors.Is(err, models.ErrBackendUnavailable):
		f.Code, f.Reason = CodeUnavailable, "Service is not set up"
	default:
		f.Code, f.Reason = CodeFailed, "subscription failed"
	}
	return f
}

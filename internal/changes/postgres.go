package changes

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// listener is the subset of *pq.Listener the source uses.
type listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// PostgresSource listens on a NOTIFY channel whose payload is an owner id.
type PostgresSource struct {
	channel      string
	pingInterval time.Duration
	log          *zap.Logger
	open         func() listener
}

// NewPostgresSource creates a source that opens its own connection to dsn.
func NewPostgresSource(dsn, channel string, log *zap.Logger) *PostgresSource {
	s := &PostgresSource{
		channel:      channel,
		pingInterval: 90 * time.Second,
		log:          log,
	}
	s.open = func() listener {
		return pq.NewListener(dsn, 10*time.Second, time.Minute, s.reportEvent)
	}
	return s
}

func (s *PostgresSource) reportEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		s.log.Warn("change listener connection problem", zap.Error(err))
	case pq.ListenerEventReconnected:
		s.log.Info("change listener reconnected")
	}
}

// Run listens until ctx is done. A reconnect is reported to h as an empty
// owner id because notifications sent while disconnected are gone.
func (s *PostgresSource) Run(ctx context.Context, h Handler) error {
	l := s.open()
	defer func() { _ = l.Close() }()

	if err := l.Listen(s.channel); err != nil {
		return fmt.Errorf("listen %s: %w", s.channel, err)
	}
	s.log.Info("listening for media changes", zap.String("channel", s.channel))

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	notes := l.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notes:
			if !ok {
				return fmt.Errorf("listen %s: notification channel closed", s.channel)
			}
			if n == nil {
				h("")
				continue
			}
			owner, ok := ownerFromPayload(n.Extra)
			if !ok {
				s.log.Warn("ignoring malformed change payload", zap.String("payload", n.Extra))
				continue
			}
			h(owner)
		case <-ticker.C:
			if err := l.Ping(); err != nil {
				s.log.Warn("change listener ping failed", zap.Error(err))
			}
		}
	}
}

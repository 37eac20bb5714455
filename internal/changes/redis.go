package changes

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSource subscribes to a pub/sub channel whose messages are owner ids.
type RedisSource struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

// NewRedisSource creates a source over an existing client.
func NewRedisSource(client *redis.Client, channel string, log *zap.Logger) *RedisSource {
	return &RedisSource{client: client, channel: channel, log: log}
}

// Run subscribes and dispatches messages until ctx is done.
func (s *RedisSource) Run(ctx context.Context, h Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed so that failures surface here.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.Info("listening for media changes", zap.String("redis_channel", s.channel))

	// The subscription may have been re-established; ask for a full refresh.
	h("")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscribe %s: channel closed", s.channel)
			}
			owner, ok := ownerFromPayload(msg.Payload)
			if !ok {
				s.log.Warn("ignoring malformed change payload", zap.String("payload", msg.Payload))
				continue
			}
			h(owner)
		}
	}
}

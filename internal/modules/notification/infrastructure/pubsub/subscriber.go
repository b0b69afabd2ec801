package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
)

// RedisSubscriber relays notifications published by any instance to the
// channels held locally.
type RedisSubscriber struct {
	client    *redis.Client
	channel   string
	deliverer domain.Deliverer
	logger    *slog.Logger
}

func NewRedisSubscriber(client *redis.Client, channel string, deliverer domain.Deliverer, logger *slog.Logger) *RedisSubscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSubscriber{client: client, channel: channel, deliverer: deliverer, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	s.logger.Info("subscribed to notification channel", "channel", s.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *RedisSubscriber) handle(payload string) bool {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		s.logger.Warn("dropping malformed notification event", "error", err)
		return false
	}
	delivered := s.deliverer.Deliver(env.Notification)
	s.logger.Debug("relayed notification",
		"origin", env.Origin,
		"notification_id", env.Notification.ID,
		"user_id", env.Notification.UserID,
		"delivered", delivered,
	)
	return delivered
}

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
)

// DefaultChannel is the Redis channel every instance publishes to and listens on.
const DefaultChannel = "notifications:events"

// envelope is the wire form of a notification on the fan-out channel.
// Origin names the publishing instance for log correlation only; every
// subscriber, the publisher's own included, delivers regardless of it.
type envelope struct {
	Origin       string              `json:"origin,omitempty"`
	Notification domain.Notification `json:"notification"`
}

// LocalPublisher hands notifications straight to this instance's channels.
type LocalPublisher struct {
	deliverer domain.Deliverer
}

func NewLocalPublisher(deliverer domain.Deliverer) *LocalPublisher {
	return &LocalPublisher{deliverer: deliverer}
}

func (p *LocalPublisher) Publish(_ context.Context, n domain.Notification) error {
	p.deliverer.Deliver(n)
	return nil
}

// RedisPublisher fans notifications out to every instance through Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	origin  string
}

func NewRedisPublisher(client *redis.Client, channel, origin string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, origin: origin}
}

func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(envelope{Origin: p.origin, Notification: n})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

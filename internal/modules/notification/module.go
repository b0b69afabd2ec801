package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/novel-notify/internal/modules/notification/application"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
	"github.com/saransh1220/novel-notify/internal/modules/notification/infrastructure/persistence/postgres"
	"github.com/saransh1220/novel-notify/internal/modules/notification/infrastructure/pubsub"
	"github.com/saransh1220/novel-notify/internal/modules/notification/infrastructure/stream"
	notification_http "github.com/saransh1220/novel-notify/internal/modules/notification/interfaces/http"
)

type Module struct {
	service    *application.NotificationService
	handler    *notification_http.NotificationHandler
	hub        *stream.Hub
	subscriber *pubsub.RedisSubscriber
}

// NewModule wires the notification module. With a Redis client, published
// notifications fan out to every instance; without one they are delivered
// to this instance only.
func NewModule(db *sqlx.DB, redisClient *redis.Client, heartbeat time.Duration, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	repo := postgres.NewPgNotificationRepository(db)
	hub := stream.NewHub()
	go hub.Run()

	var (
		publisher  domain.Publisher
		subscriber *pubsub.RedisSubscriber
	)
	if redisClient != nil {
		publisher = pubsub.NewRedisPublisher(redisClient, pubsub.DefaultChannel, uuid.NewString())
		subscriber = pubsub.NewRedisSubscriber(redisClient, pubsub.DefaultChannel, hub, logger)
	} else {
		publisher = pubsub.NewLocalPublisher(hub)
	}

	service := application.NewNotificationService(repo, publisher, logger)
	handler := notification_http.NewNotificationHandler(service, hub, heartbeat)

	return &Module{
		service:    service,
		handler:    handler,
		hub:        hub,
		subscriber: subscriber,
	}
}

func (m *Module) HTTPHandler() *notification_http.NotificationHandler {
	return m.handler
}

func (m *Module) Service() *application.NotificationService {
	return m.service
}

func (m *Module) Hub() *stream.Hub {
	return m.hub
}

// RunSubscriber relays notifications from other instances until ctx ends.
// It returns immediately when the module runs without Redis.
func (m *Module) RunSubscriber(ctx context.Context) error {
	if m.subscriber == nil {
		return nil
	}
	return m.subscriber.Run(ctx)
}

// Shutdown closes every live channel.
func (m *Module) Shutdown() {
	m.hub.Stop()
}

package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
)

var notificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_published_total",
	Help: "Notifications handed to the push side, by type and outcome.",
}, []string{"type", "outcome"})

// CreateInput is a single-recipient notification request.
type CreateInput struct {
	UserID      uuid.UUID
	Title       string
	Message     string
	Type        domain.NotificationType
	ReferenceID *string
}

type NotificationService struct {
	repo      domain.NotificationRepository
	publisher domain.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotificationService(repo domain.NotificationRepository, publisher domain.Publisher, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

// Create stores the notification and then publishes it. The row is the
// source of truth; a failed publish is logged and not returned.
func (s *NotificationService) Create(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	if in.Type == "" {
		in.Type = domain.NotificationTypeSystem
	}
	if !in.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, domain.ErrEmptyContent
	}

	notification := &domain.Notification{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Title:       in.Title,
		Message:     in.Message,
		Type:        in.Type,
		ReferenceID: in.ReferenceID,
		IsRead:      false,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	s.publish(ctx, *notification)
	return notification, nil
}

// Broadcast sends a SYSTEM notification to every registered user.
func (s *NotificationService) Broadcast(ctx context.Context, title, message string, referenceID *string) ([]domain.Notification, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return nil, domain.ErrEmptyContent
	}

	created, err := s.repo.CreateForAllUsers(ctx, domain.Notification{
		Title:       title,
		Message:     message,
		Type:        domain.NotificationTypeSystem,
		ReferenceID: referenceID,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	for _, n := range created {
		s.publish(ctx, n)
	}
	s.logger.Info("Broadcast notification", "recipients", len(created))
	return created, nil
}

func (s *NotificationService) publish(ctx context.Context, n domain.Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		notificationsPublished.WithLabelValues(string(n.Type), "error").Inc()
		s.logger.Warn("Failed to publish notification", "notification_id", n.ID, "user_id", n.UserID, "error", err)
		return
	}
	notificationsPublished.WithLabelValues(string(n.Type), "ok").Inc()
}

// GetUserNotifications returns one zero-based page, newest first.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID uuid.UUID, page, size int) ([]domain.Notification, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	notifications, err := s.repo.GetByUserID(ctx, userID, size, page*size)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return notifications, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.repo.Delete(ctx, notificationID, userID)
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteAll(ctx, userID)
}

// AdminDelete removes a notification regardless of owner.
func (s *NotificationService) AdminDelete(ctx context.Context, notificationID uuid.UUID) error {
	return s.repo.DeleteByID(ctx, notificationID)
}

package domain

import (
	"context"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	// CreateForAllUsers inserts one copy of template per registered user and
	// returns the stored rows.
	CreateForAllUsers(ctx context.Context, template Notification) ([]Notification, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error)
	MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, notificationID, userID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) error
	DeleteByID(ctx context.Context, notificationID uuid.UUID) error
}

// Publisher hands a stored notification to the push side.
type Publisher interface {
	Publish(ctx context.Context, notification Notification) error
}

// Deliverer writes a notification to the live channel of its owner on this
// instance, if there is one.
type Deliverer interface {
	Deliver(notification Notification) bool
}

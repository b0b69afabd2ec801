package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeSystem        NotificationType = "SYSTEM"
	NotificationTypeBookUpdate    NotificationType = "BOOK_UPDATE"
	NotificationTypeChapterUpdate NotificationType = "CHAPTER_UPDATE"
	NotificationTypeComment       NotificationType = "COMMENT"
	NotificationTypeLike          NotificationType = "LIKE"
	NotificationTypeFollow        NotificationType = "FOLLOW"
	NotificationTypeMessage       NotificationType = "MESSAGE"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeSystem, NotificationTypeBookUpdate, NotificationTypeChapterUpdate,
		NotificationTypeComment, NotificationTypeLike, NotificationTypeFollow, NotificationTypeMessage:
		return true
	}
	return false
}

// Notification is stored with an is_read column but travels as "read".
type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	UserID      uuid.UUID        `json:"user_id" db:"user_id"`
	Title       string           `json:"title" db:"title"`
	Message     string           `json:"message" db:"message"`
	Type        NotificationType `json:"type" db:"type"`
	ReferenceID *string          `json:"reference_id,omitempty" db:"reference_id"`
	IsRead      bool             `json:"read" db:"is_read"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// ConnectionStats describes the live push channels held by one instance.
type ConnectionStats struct {
	ActiveConnections int         `json:"active_connections"`
	ConnectedUsers    []uuid.UUID `json:"connected_users"`
}

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidType          = errors.New("invalid notification type")
	ErrEmptyContent         = errors.New("title and message are required")
	ErrRecipientNotFound    = errors.New("recipient not found")
)

package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	TypeSystem        NotificationType = "SYSTEM"
	TypeBookUpdate    NotificationType = "BOOK_UPDATE"
	TypeChapterUpdate NotificationType = "CHAPTER_UPDATE"
	TypeComment       NotificationType = "COMMENT"
	TypeLike          NotificationType = "LIKE"
	TypeFollow        NotificationType = "FOLLOW"
	TypeMessage       NotificationType = "MESSAGE"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeSystem, TypeBookUpdate, TypeChapterUpdate, TypeComment, TypeLike, TypeFollow, TypeMessage:
		return true
	}
	return false
}

// Notification is the client-side view of a server notification as it
// travels over the push channel and the REST endpoints.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	ReferenceID *string          `json:"reference_id,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ParseNotification decodes a `notification` event payload.
func ParseNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, &ParseError{Err: err}
	}
	if n.ID == "" {
		return Notification{}, &ParseError{Err: fmt.Errorf("missing notification id")}
	}
	if !n.Type.Valid() {
		return Notification{}, &ParseError{Err: fmt.Errorf("unknown notification type %q", n.Type)}
	}
	return n, nil
}

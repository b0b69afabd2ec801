package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/novel-notify/internal/gateway/middleware"
	"github.com/saransh1220/novel-notify/internal/modules/notification/application"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
	"github.com/saransh1220/novel-notify/internal/modules/notification/infrastructure/stream"
	"github.com/saransh1220/novel-notify/internal/shared/utils"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type NotificationHandler struct {
	service   *application.NotificationService
	hub       *stream.Hub
	heartbeat time.Duration
}

func NewNotificationHandler(service *application.NotificationService, hub *stream.Hub, heartbeat time.Duration) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub, heartbeat: heartbeat}
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
	}
	return userID, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid notification id", err)
		return uuid.Nil, false
	}
	return id, true
}

// Stream opens the server-sent event channel for the caller.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	stream.ServeSSE(h.hub, w, r, userID, h.heartbeat)
}

// Subscribe upgrades the request to a WebSocket channel for the caller.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	stream.ServeWs(h.hub, w, r, userID)
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	page, size := 0, defaultPageSize
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v >= 0 {
			page = v
		}
	}
	if s := r.URL.Query().Get("size"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			size = min(v, maxPageSize)
		}
	}

	notifications, err := h.service.GetUserNotifications(r.Context(), userID, page, size)
	if err != nil {
		log.Printf("ListNotifications: service error: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to fetch notifications", nil)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"data": notifications,
		"page": page,
		"size": size,
	})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "failed to get unread count", nil)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := pathID(w, r)
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(r.Context(), notificationID, userID); err != nil {
		h.writeMutationError(w, err, "failed to mark notification as read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAllAsRead(r.Context(), userID); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "failed to mark all notifications as read", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := pathID(w, r)
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), notificationID, userID); err != nil {
		h.writeMutationError(w, err, "failed to delete notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAll(r.Context(), userID); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "failed to delete notifications", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publishRequest struct {
	UserID      *uuid.UUID              `json:"user_id,omitempty"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	Type        domain.NotificationType `json:"type,omitempty"`
	ReferenceID *string                 `json:"reference_id,omitempty"`
}

// Publish creates a notification for one user, or for every user when no
// user_id is given.
func (h *NotificationHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.UserID == nil {
		if req.Type != "" && req.Type != domain.NotificationTypeSystem {
			utils.WriteError(w, http.StatusBadRequest, "broadcasts are SYSTEM notifications", nil)
			return
		}
		created, err := h.service.Broadcast(r.Context(), req.Title, req.Message, req.ReferenceID)
		if err != nil {
			h.writeMutationError(w, err, "failed to broadcast notification")
			return
		}
		utils.WriteJSON(w, http.StatusCreated, map[string]int{"created": len(created)})
		return
	}

	_, err := h.service.Create(r.Context(), application.CreateInput{
		UserID:      *req.UserID,
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		h.writeMutationError(w, err, "failed to create notification")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]int{"created": 1})
}

func (h *NotificationHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.AdminDelete(r.Context(), notificationID); err != nil {
		h.writeMutationError(w, err, "failed to delete notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Connections reports the push channels held by this instance.
func (h *NotificationHandler) Connections(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *NotificationHandler) writeMutationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotificationNotFound):
		utils.WriteError(w, http.StatusNotFound, "notification not found", nil)
	case errors.Is(err, domain.ErrRecipientNotFound):
		utils.WriteError(w, http.StatusNotFound, "recipient not found", nil)
	case errors.Is(err, domain.ErrInvalidType), errors.Is(err, domain.ErrEmptyContent):
		utils.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Printf("notification handler: %s: %v", fallback, err)
		utils.WriteError(w, http.StatusInternalServerError, fallback, nil)
	}
}

package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saransh1220/novel-notify/internal/gateway/middleware"
	notification_http "github.com/saransh1220/novel-notify/internal/modules/notification/interfaces/http"
)

const adminRole = "admin"

// RouterConfig holds all the handlers and middleware needed for routing
type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleWare
	NotificationHandler *notification_http.NotificationHandler
	AllowedOrigins      string
}

// SetupRoutes creates and configures all application routes
func SetupRoutes(config RouterConfig) *http.ServeMux {
	router := NewRouter()
	auth := config.AuthMiddleware
	h := config.NotificationHandler

	// Health Check
	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus Metrics Endpoint
	router.Handle("GET /metrics", promhttp.Handler())

	user := router.With(auth.RequireAuth)
	admin := router.With(func(next http.Handler) http.Handler {
		return auth.RequireRole(adminRole, next)
	})

	// Push channels
	user.HandleFunc("GET /notifications/stream", h.Stream)
	user.HandleFunc("GET /ws", h.Subscribe)

	// Notification Routes
	user.HandleFunc("GET /notifications", h.ListNotifications)
	user.HandleFunc("DELETE /notifications", h.DeleteAll)
	user.HandleFunc("GET /notifications/unread-count", h.UnreadCount)
	user.HandleFunc("PATCH /notifications/read-all", h.MarkAllAsRead)
	user.HandleFunc("PATCH /notifications/{id}/read", h.MarkAsRead)
	user.HandleFunc("DELETE /notifications/{id}", h.Delete)

	// Admin Routes
	admin.HandleFunc("POST /admin/notifications", h.Publish)
	admin.HandleFunc("DELETE /admin/notifications/{id}", h.AdminDelete)
	admin.HandleFunc("GET /admin/notifications/connections", h.Connections)

	return router.Mux()
}

// NewHandler wraps the routes in the CORS and metrics middleware.
func NewHandler(config RouterConfig) http.Handler {
	return middleware.PrometheusMiddleware(
		middleware.CORSMiddleware(SetupRoutes(config), config.AllowedOrigins),
	)
}

package handler

import (
	"net/http"
	"time"

	"portal-agent/internal/container"
	"portal-agent/internal/domain"
	"portal-agent/pkg/errors"
	"portal-agent/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// NotificationHandler exposes the notification socket state and the toast
// and desktop feeds
type NotificationHandler struct {
	container *container.Container
	logger    *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(container *container.Container) *NotificationHandler {
	return &NotificationHandler{
		container: container,
		logger:    container.GetLogger().Component("notification_handler"),
	}
}

// RegisterRoutes mounts the notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Post("/read", h.MarkRead)
		r.Post("/permission", h.RequestPermission)
		r.Get("/toasts", h.ListToasts)
		r.Get("/desktop", h.ListDesktop)
	})
}

// PermissionRequest answers the desktop notification prompt
type PermissionRequest struct {
	Permission domain.NotificationPermission `json:"permission"`
}

// GetState handles GET /api/v1/notifications
func (h *NotificationHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.container.Notifier.State())
}

// MarkRead handles POST /api/v1/notifications/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.container.Notifier.MarkChatAsRead()
	respondJSON(w, http.StatusOK, h.container.Notifier.State())
}

// RequestPermission handles POST /api/v1/notifications/permission
func (h *NotificationHandler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if req.Permission != domain.PermissionGranted && req.Permission != domain.PermissionDenied {
		respondError(w, r, errors.NewValidationError("Permission must be granted or denied", nil), h.logger)
		return
	}

	permission := h.container.Notifier.RequestNotificationPermission(req.Permission)
	respondJSON(w, http.StatusOK, map[string]interface{}{"permission": permission})
}

// ListToasts handles GET /api/v1/notifications/toasts?since=RFC3339
func (h *NotificationHandler) ListToasts(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	if since == "" {
		respondJSON(w, http.StatusOK, h.container.Toasts.List())
		return
	}

	t, err := time.Parse(time.RFC3339Nano, since)
	if err != nil {
		respondError(w, r, errors.NewValidationError("since must be an RFC 3339 timestamp", nil), h.logger)
		return
	}
	respondJSON(w, http.StatusOK, h.container.Toasts.Since(t))
}

// ListDesktop handles GET /api/v1/notifications/desktop
func (h *NotificationHandler) ListDesktop(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.container.Desktop.List())
}

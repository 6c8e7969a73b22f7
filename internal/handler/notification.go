package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/queue"
)

// NotificationHandler hands queued notifications to the browser
type NotificationHandler struct {
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{logger: logger}
}

// RegisterRoutes sets up the notification routes on the given router
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.Drain)
}

// Drain handles GET /notifications
// Each notification is returned once
func (h *NotificationHandler) Drain(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	notes, err := s.Notifications(r.Context())
	if err != nil {
		h.logger.Error("failed to drain notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get notifications")
		return
	}

	if notes == nil {
		notes = []queue.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/session"
)

// SessionManager creates and ends console sessions
type SessionManager interface {
	Login(ctx context.Context, req model.LoginRequest) (string, time.Time, error)
	Load(ctx context.Context, id string) (*session.Session, error)
	Logout(ctx context.Context, id string) error
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	sessions SessionManager
	cookie   session.CookieConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions SessionManager, cookie session.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookie: cookie, logger: logger}
}

// RegisterRoutes sets up the auth routes
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, expires, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		switch err {
		case model.ErrUsernameRequired, model.ErrPasswordRequired:
			writeError(w, http.StatusBadRequest, err.Error())
		case model.ErrNotAuthenticated:
			writeError(w, http.StatusUnauthorized, "Login token already expired")
		default:
			status := apiclient.StatusCode(err, http.StatusBadGateway)
			if status >= http.StatusInternalServerError {
				h.logger.Error("login failed", "error", err)
				status = http.StatusBadGateway
			}
			writeError(w, status, apiclient.Message(err))
		}
		return
	}

	// Shared across the console's subdomains
	h.cookie.Set(w, id, expires)

	resp := map[string]any{
		"message":    "Logged in successfully",
		"expires_at": expires,
	}

	// Start loading the profile now so the first page has it
	if s, err := h.sessions.Load(r.Context(), id); err == nil {
		if user, err := s.EnsureUser(r.Context()); err == nil {
			resp["user"] = user
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout
// Pending autosaves are flushed before the token is forgotten
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.cookie.Read(r); ok {
		if err := h.sessions.Logout(r.Context(), id); err != nil {
			h.logger.Error("logout failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Logout failed")
			return
		}
	}

	h.cookie.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

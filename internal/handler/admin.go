package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/model"
)

// DefaultUserLimit is the user listing page size when none is requested
const DefaultUserLimit = 10

// AdminHandler handles the administrator HTTP requests.
// Routes must be mounted behind middleware.RequireAdmin.
type AdminHandler struct {
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(logger *slog.Logger) *AdminHandler {
	return &AdminHandler{logger: logger}
}

// RegisterRoutes sets up the admin routes on the given router
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Patch("/{id}/status/{status}", h.SetAccountStatus)
		r.Delete("/{id}", h.DeleteUser)
	})
	r.Route("/deposits", func(r chi.Router) {
		r.Get("/", h.ListDeposits)
		r.Put("/{id}/status", h.SetDepositStatus)
	})
	r.Route("/config/wallets", func(r chi.Router) {
		r.Get("/", h.Settings)
		r.Put("/{crypto}/address", h.SetWalletAddress)
	})
}

// ListUsers handles GET /admin/users
// Optional query parameters: page (default 1), limit (default 10), search
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	q := model.ParsePageQuery(r.URL.Query(), DefaultUserLimit)
	writeState(w, s.Users(q))
}

// SetAccountStatus handles PATCH /admin/users/{id}/status/{status}
func (h *AdminHandler) SetAccountStatus(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	status, err := model.ParseAccountStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.SetAccountStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		respondError(w, h.logger, err, "Failed to update account status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Account status updated",
	})
}

// DeleteUser handles DELETE /admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := s.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "User deleted",
	})
}

// ListDeposits handles GET /admin/deposits
func (h *AdminHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeState(w, s.Deposits())
}

// SetDepositStatus handles PUT /admin/deposits/{id}/status
// The change is saved after a short quiet period; failures arrive as notifications
func (h *AdminHandler) SetDepositStatus(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req model.UpdateDepositStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.SetDepositStatus(chi.URLParam(r, "id"), req.Status); err != nil {
		respondError(w, h.logger, err, "Failed to update deposit status")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Status change queued",
	})
}

// Settings handles GET /admin/config/wallets
// Unsaved address edits are included
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeState(w, s.Settings())
}

type addressBody struct {
	Address string `json:"address"`
}

// SetWalletAddress handles PUT /admin/config/wallets/{crypto}/address
func (h *AdminHandler) SetWalletAddress(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	crypto, err := model.ParseCrypto(chi.URLParam(r, "crypto"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body addressBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.SetWalletAddress(crypto, body.Address); err != nil {
		respondError(w, h.logger, err, "Failed to update wallet address")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Address change queued",
	})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/fetch"
	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/session"
	"github.com/simonkvalheim/hm9-console/internal/validation"
)

// DefaultTransactionLimit is the wallet history page size when none is requested
const DefaultTransactionLimit = 5

// AccountHandler handles HTTP requests for the caller's profile and wallet
type AccountHandler struct {
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(logger *slog.Logger) *AccountHandler {
	return &AccountHandler{logger: logger}
}

// RegisterRoutes sets up the account routes on the given router
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.Profile)
	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", h.Wallet)
		r.Post("/refresh", h.RefreshWallet)
		r.Get("/transactions", h.Transactions)
	})
}

// Profile handles GET /profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Wallet handles GET /wallet
// Returns the cached wallet; it is refreshed in the background
func (h *AccountHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeState(w, s.WalletState())
}

// RefreshWallet handles POST /wallet/refresh
func (h *AccountHandler) RefreshWallet(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := s.RefreshWallet(r.Context()); err != nil && !errors.Is(err, fetch.ErrSuperseded) {
		respondError(w, h.logger, err, "Failed to refresh wallet")
		return
	}
	writeState(w, s.WalletState())
}

// Transactions handles GET /wallet/transactions
// Optional query parameters: page (default 1), limit (default 5)
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	q := model.ParsePageQuery(r.URL.Query(), DefaultTransactionLimit)
	page, err := s.Transactions(r.Context(), q.Page, q.Limit)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list transactions")
		return
	}

	// Return empty array instead of null if no transactions
	if page.Transactions == nil {
		page.Transactions = []model.WalletTransaction{}
	}
	writeJSON(w, http.StatusOK, page)
}

// Helper functions for HTTP responses

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeValidation(w http.ResponseWriter, errs validation.Errors) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "Please fix the errors below",
		"fields": errs,
	})
}

// stateResponse is the wire form of a fetch.State
type stateResponse[T any] struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data"`
}

func writeState[T any](w http.ResponseWriter, st fetch.State[T]) {
	resp := stateResponse[T]{Loading: st.Loading, Data: st.Data}
	if st.Err != nil {
		resp.Error = apiclient.Message(st.Err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// respondError maps err onto an HTTP status. Banking API failures keep their
// message; fallback is shown for anything unexpected.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	var errs validation.Errors
	if errors.As(err, &errs) {
		writeValidation(w, errs)
		return
	}

	switch {
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrRecipientRequired),
		errors.Is(err, model.ErrInvalidAccountType),
		errors.Is(err, model.ErrInvalidAccountStatus),
		errors.Is(err, model.ErrInvalidDepositStatus),
		errors.Is(err, model.ErrUnsupportedCrypto),
		errors.Is(err, model.ErrAddressRequired),
		errors.Is(err, model.ErrNetworkRequired),
		errors.Is(err, model.ErrUsernameRequired),
		errors.Is(err, model.ErrPasswordRequired),
		errors.Is(err, model.ErrWithdrawInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, model.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	case errors.Is(err, model.ErrAccountSuspended), errors.Is(err, model.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, model.ErrWalletNotLoaded), errors.Is(err, session.ErrSettingsNotLoaded):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, fetch.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "Session closed")
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Banking service timed out")
		return
	}

	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode()
		if status >= http.StatusInternalServerError {
			logger.Warn("banking api failure", "error", err)
			status = http.StatusBadGateway
		}
		writeError(w, status, apiclient.Message(err))
		return
	}

	logger.Error(fallback, "error", err)
	writeError(w, http.StatusBadGateway, fallback)
}

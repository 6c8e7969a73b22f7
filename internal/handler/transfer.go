package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/hm9-console/internal/fetch"
	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/receipt"
	"github.com/simonkvalheim/hm9-console/internal/validation"
)

// TransferHandler handles HTTP requests that move money out of the caller's wallet
type TransferHandler struct {
	loc    *time.Location // Receipt time zone
	logger *slog.Logger
}

// NewTransferHandler creates a new TransferHandler
// Receipts print their dates in loc; nil means UTC
func NewTransferHandler(loc *time.Location, logger *slog.Logger) *TransferHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TransferHandler{loc: loc, logger: logger}
}

// RegisterRoutes sets up the transfer routes on the given router
func (h *TransferHandler) RegisterRoutes(r chi.Router) {
	r.Post("/transfers", h.CreateTransfer)
	r.Get("/users/search", h.SearchUsers)
	r.Route("/withdraws", func(r chi.Router) {
		r.Post("/", h.CreateWithdraw)
		r.Get("/{id}", h.GetWithdraw)
		r.Get("/{id}/receipt", h.GetReceipt)
	})
}

// transferBody accepts the amount as a JSON number or as form text
type transferBody struct {
	ToUserID string          `json:"toUserId"`
	Amount   json.RawMessage `json:"amount"`
	Note     string          `json:"note"`
}

// CreateTransfer handles POST /transfers
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var body transferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseAmount(strings.Trim(string(body.Amount), `"`))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := model.TransferRequest{
		ToUserID: strings.TrimSpace(body.ToUserID),
		Amount:   amount,
		Note:     strings.TrimSpace(body.Note),
	}
	if err := s.Transfer(r.Context(), req); err != nil {
		respondError(w, h.logger, err, "Failed to transfer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Transfer successful",
	})
}

// parseAmount reads a strictly positive decimal amount
func parseAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, model.ErrInvalidAmount
	}

	val, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, model.ErrInvalidAmount
	}

	if !val.IsPositive() {
		return decimal.Zero, model.ErrInvalidAmount
	}

	return val, nil
}

// SearchUsers handles GET /users/search?search=
// Results arrive once the search term has been stable for the debounce delay
func (h *TransferHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("search"))
	if term == "" {
		writeState(w, fetch.State[[]model.User]{Data: []model.User{}})
		return
	}
	writeState(w, s.SearchUsers(term))
}

// CreateWithdraw handles POST /withdraws
// Field errors are returned as 422 {"error", "fields"} and never reach the bank
func (h *TransferHandler) CreateWithdraw(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req model.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.SubmitWithdraw(r.Context(), req)
	if err != nil {
		var errs validation.Errors
		if errors.As(err, &errs) {
			writeValidation(w, errs)
			return
		}
		respondError(w, h.logger, err, "Failed to submit withdrawal")
		return
	}

	location := "/withdraws/" + resp.ID
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusCreated, map[string]string{
		"_id":      resp.ID,
		"location": location,
	})
}

// GetWithdraw handles GET /withdraws/{id}
func (h *TransferHandler) GetWithdraw(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	wd, err := s.Withdraw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err, "Failed to get withdrawal")
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// GetReceipt handles GET /withdraws/{id}/receipt
// Returns a plain-text download with the account number masked
func (h *TransferHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	wd, err := s.Withdraw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err, "Failed to get withdrawal")
		return
	}

	w.Header().Set("Content-Type", receipt.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename(wd.ID)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(receipt.Render(wd, h.loc)))
}

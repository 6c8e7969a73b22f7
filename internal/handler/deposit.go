package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/model"
)

// DepositHandler handles crypto deposit HTTP requests
type DepositHandler struct {
	logger *slog.Logger
}

// NewDepositHandler creates a new DepositHandler
func NewDepositHandler(logger *slog.Logger) *DepositHandler {
	return &DepositHandler{logger: logger}
}

// RegisterRoutes sets up the deposit routes on the given router
func (h *DepositHandler) RegisterRoutes(r chi.Router) {
	r.Route("/crypto-deposits", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/address/{crypto}", h.Address)
	})
}

type depositBody struct {
	Crypto    string          `json:"crypto"`
	AmountUSD json.RawMessage `json:"amount"`
}

// Create handles POST /crypto-deposits
// The crypto amount is derived from the USD amount at fixed rates
func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var body depositBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	crypto, err := model.ParseCrypto(body.Crypto)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(strings.Trim(string(body.AmountUSD), `"`))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := s.Deposit(r.Context(), crypto, amount)
	if err != nil {
		respondError(w, h.logger, err, "Failed to create deposit")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// Address handles GET /crypto-deposits/address/{crypto}
func (h *DepositHandler) Address(w http.ResponseWriter, r *http.Request) {
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

	address, err := s.DepositAddress(r.Context(), crypto)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get deposit address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"crypto":  string(crypto),
		"symbol":  crypto.Symbol(),
		"address": address,
	})
}

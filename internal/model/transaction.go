package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest is the payload for sending money to another user
type TransferRequest struct {
	ToUserID string          `json:"toUserId"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note"`
}

// Validate checks that a recipient and a positive amount are present
func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.ToUserID) == "" {
		return ErrRecipientRequired
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// WithdrawStatus represents the review state of a withdrawal
type WithdrawStatus string

const (
	WithdrawStatusPending  WithdrawStatus = "pending"
	WithdrawStatusApproved WithdrawStatus = "approved"
	WithdrawStatusRejected WithdrawStatus = "rejected"
)

// WithdrawRequest is a request to pay wallet funds out to an external bank account
type WithdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountHolder string          `json:"accountHolder"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
	RoutingNumber string          `json:"routingNumber"`
	AccountType   AccountType     `json:"accountType"`
	Notes         *string         `json:"notes,omitempty"`
}

// UnmarshalJSON accepts the amount either as a JSON number or as the raw text of
// a form field. Blank or non-numeric text reads as zero.
func (r *WithdrawRequest) UnmarshalJSON(data []byte) error {
	type alias WithdrawRequest
	aux := struct {
		*alias
		Amount json.RawMessage `json:"amount"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Amount = parseFormAmount(aux.Amount)
	return nil
}

func parseFormAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Validate checks the fields the form validators do not cover
func (r WithdrawRequest) Validate() error {
	if !r.AccountType.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

// WithdrawResponse is a withdrawal as stored by the banking API
type WithdrawResponse struct {
	ID            string          `json:"_id"`
	Amount        decimal.Decimal `json:"amount"`
	AccountHolder string          `json:"accountHolder"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
	RoutingNumber string          `json:"routingNumber"`
	AccountType   AccountType     `json:"accountType"`
	Notes         *string         `json:"notes,omitempty"`
	Status        WithdrawStatus  `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

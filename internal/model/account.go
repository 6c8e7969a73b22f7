package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The banking API speaks JSON numbers for every amount
	decimal.MarshalJSONWithoutQuotes = true
}

// AccountType represents the type of the external bank account a withdrawal is paid into
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeBusiness AccountType = "business"
)

// Valid reports whether t is one of the known account types
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeBusiness:
		return true
	}
	return false
}

// AccountStatus represents whether a user may operate their account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// ParseAccountStatus converts a path segment into an AccountStatus
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch AccountStatus(s) {
	case AccountStatusActive, AccountStatusSuspended:
		return AccountStatus(s), nil
	}
	return "", ErrInvalidAccountStatus
}

// Wallet is the user's balance-holding account at the bank
type Wallet struct {
	ID        string          `json:"_id"`
	Balance   decimal.Decimal `json:"balance"`
	UserID    string          `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// WalletTransaction is a single credit or debit on a wallet
type WalletTransaction struct {
	ID          string          `json:"_id"`
	Amount      decimal.Decimal `json:"amount"`
	IsDebit     bool            `json:"isDebit"`
	WalletID    string          `json:"walletId"`
	Description string          `json:"transactionDescription"`
	DepositID   string          `json:"depositId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// WalletTransactionPage is one page of a wallet's transaction history
type WalletTransactionPage struct {
	Transactions []WalletTransaction `json:"txts"`
	Total        int                 `json:"total"`
}

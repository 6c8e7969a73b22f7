package model

import "errors"

var (
	// Account errors
	ErrInvalidAccountType   = errors.New("invalid account type: must be checking, savings, or business")
	ErrInvalidAccountStatus = errors.New("invalid account status: must be active or suspended")
	ErrAccountSuspended     = errors.New("account is suspended")
	ErrNotAdmin             = errors.New("admin access required")
	ErrWalletNotLoaded      = errors.New("wallet has not been loaded yet")

	// Auth errors
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Transfer and withdrawal errors
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrRecipientRequired = errors.New("recipient is required")
	ErrWithdrawInvalid   = errors.New("withdrawal request failed validation")

	// Deposit errors
	ErrInvalidDepositStatus = errors.New("invalid deposit status: must be Pending, Confirmed, or Failed")
	ErrUnsupportedCrypto    = errors.New("unsupported cryptocurrency: must be bitcoin, ethereum, or tether")
	ErrAddressRequired      = errors.New("wallet address is required")
	ErrNetworkRequired      = errors.New("network is required")
)

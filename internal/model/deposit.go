package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Crypto identifies a supported deposit currency by its settings key
type Crypto string

const (
	CryptoBitcoin  Crypto = "bitcoin"
	CryptoEthereum Crypto = "ethereum"
	CryptoTether   Crypto = "tether"
)

// cryptoInfo holds the display name, ticker and fixed USD rate of a currency
type cryptoInfo struct {
	name   string
	symbol string
	rate   decimal.Decimal
}

var cryptos = map[Crypto]cryptoInfo{
	CryptoBitcoin:  {name: "Bitcoin", symbol: "BTC", rate: decimal.NewFromInt(65000)},
	CryptoEthereum: {name: "Ethereum", symbol: "ETH", rate: decimal.NewFromInt(3200)},
	CryptoTether:   {name: "Tether", symbol: "USDT", rate: decimal.NewFromInt(1)},
}

// ParseCrypto accepts a settings key, a display name or a ticker, in any case
func ParseCrypto(s string) (Crypto, error) {
	s = strings.TrimSpace(s)
	for c, info := range cryptos {
		if strings.EqualFold(s, string(c)) ||
			strings.EqualFold(s, info.name) ||
			strings.EqualFold(s, info.symbol) {
			return c, nil
		}
	}
	return "", ErrUnsupportedCrypto
}

// Name returns the display name, e.g. "Bitcoin"
func (c Crypto) Name() string { return cryptos[c].name }

// Symbol returns the ticker, e.g. "BTC"
func (c Crypto) Symbol() string { return cryptos[c].symbol }

// USDRate returns the fixed price of one unit in USD
func (c Crypto) USDRate() decimal.Decimal { return cryptos[c].rate }

// DepositStatus represents the confirmation state of a crypto deposit
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "Pending"
	DepositStatusConfirmed DepositStatus = "Confirmed"
	DepositStatusFailed    DepositStatus = "Failed"
)

// Valid reports whether s is one of the known deposit states
func (s DepositStatus) Valid() bool {
	switch s {
	case DepositStatusPending, DepositStatusConfirmed, DepositStatusFailed:
		return true
	}
	return false
}

// CryptoDeposit is a deposit a user has declared and an admin confirms
type CryptoDeposit struct {
	ID                 string          `json:"_id"`
	UserID             string          `json:"userId"`
	AmountInCrypto     decimal.Decimal `json:"amountInCrypto"`
	AmountInUSD        decimal.Decimal `json:"amountInUSD"`
	CryptoWalletName   string          `json:"cryptoWalletName"`
	CryptoWalletSymbol string          `json:"cryptoWalletSymbol"`
	Status             DepositStatus   `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// CryptoDepositRequest is the payload for declaring a crypto deposit
type CryptoDepositRequest struct {
	AmountInCrypto     string          `json:"amountInCrypto"`
	AmountInUSD        decimal.Decimal `json:"amountInUSD"`
	CryptoWalletName   string          `json:"cryptoWalletName"`
	CryptoWalletSymbol string          `json:"cryptoWalletSymbol"`
}

// NewCryptoDepositRequest converts a USD amount into c at its fixed rate
func NewCryptoDepositRequest(c Crypto, amountUSD decimal.Decimal) (CryptoDepositRequest, error) {
	if _, ok := cryptos[c]; !ok {
		return CryptoDepositRequest{}, ErrUnsupportedCrypto
	}
	if !amountUSD.IsPositive() {
		return CryptoDepositRequest{}, ErrInvalidAmount
	}

	return CryptoDepositRequest{
		AmountInCrypto:     amountUSD.Div(c.USDRate()).StringFixed(8),
		AmountInUSD:        amountUSD,
		CryptoWalletName:   c.Name(),
		CryptoWalletSymbol: c.Symbol(),
	}, nil
}

// UpdateDepositStatusRequest is the payload for an admin status change
type UpdateDepositStatusRequest struct {
	Status DepositStatus `json:"status"`
}

// Validate checks the status is a known value
func (r UpdateDepositStatusRequest) Validate() error {
	if !r.Status.Valid() {
		return ErrInvalidDepositStatus
	}
	return nil
}

// CryptoDepositInfo is the deposit configuration of one currency
type CryptoDepositInfo struct {
	Network     string          `json:"network"`
	Address     string          `json:"address"`
	MinDeposit  decimal.Decimal `json:"minDeposit"`
	Icon        string          `json:"icon"`
	DepositNote string          `json:"depositNote"`
}

// Validate checks the fields a depositor needs are present
func (i CryptoDepositInfo) Validate() error {
	if strings.TrimSpace(i.Network) == "" {
		return ErrNetworkRequired
	}
	if strings.TrimSpace(i.Address) == "" {
		return ErrAddressRequired
	}
	if i.MinDeposit.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// AdminCryptoAddresses is the admin-managed deposit configuration for every supported currency
type AdminCryptoAddresses struct {
	Bitcoin  CryptoDepositInfo `json:"bitcoin"`
	Tether   CryptoDepositInfo `json:"tether"`
	Ethereum CryptoDepositInfo `json:"ethereum"`
}

// IsZero returns true before the configuration has been loaded
func (a AdminCryptoAddresses) IsZero() bool {
	return a == AdminCryptoAddresses{}
}

// Get returns the configuration of c
func (a *AdminCryptoAddresses) Get(c Crypto) (CryptoDepositInfo, error) {
	switch c {
	case CryptoBitcoin:
		return a.Bitcoin, nil
	case CryptoEthereum:
		return a.Ethereum, nil
	case CryptoTether:
		return a.Tether, nil
	}
	return CryptoDepositInfo{}, ErrUnsupportedCrypto
}

// SetAddress replaces the deposit address of c
func (a *AdminCryptoAddresses) SetAddress(c Crypto, address string) error {
	switch c {
	case CryptoBitcoin:
		a.Bitcoin.Address = address
	case CryptoEthereum:
		a.Ethereum.Address = address
	case CryptoTether:
		a.Tether.Address = address
	default:
		return ErrUnsupportedCrypto
	}
	return nil
}

// Validate checks every currency is fully configured
func (a AdminCryptoAddresses) Validate() error {
	for _, info := range []CryptoDepositInfo{a.Bitcoin, a.Tether, a.Ethereum} {
		if err := info.Validate(); err != nil {
			return err
		}
	}
	return nil
}

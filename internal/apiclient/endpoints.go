package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/simonkvalheim/hm9-console/internal/model"
)

// Paths of banking API resources. The exported ones are polled through fetch primitives.
const (
	PathProfile         = "/user/profile"
	PathWallet          = "/wallet"
	PathLatestDeposits  = "/crypto-deposits/latest"
	PathAdminWallets    = "/admin/config/wallets"
	pathWithdraws       = "/withdraws"
	pathTransfer        = "/banking-system/transfer"
	pathCryptoDeposits  = "/crypto-deposits"
	pathLogin           = "/auth/login"
	pathUserSearch      = "/user/search"
	pathUserList        = "/user/all"
	pathWalletAddress   = "/admin/config/wallet-address/"
	pathDepositStatus   = "/crypto-deposits/update-status/"
	pathAccountStatus   = "/user/update-account/"
	pathDeleteAccount   = "/user/delete-account/"
	pathWalletTransacts = "/wallet/transactions/"
)

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	var resp model.LoginResponse
	err := c.do(ctx, http.MethodPost, pathLogin, req, &resp)
	return resp, err
}

// WalletTransactionsPath returns the path of one page of a wallet's history
func WalletTransactionsPath(walletID string, page, limit int) string {
	if walletID == "" {
		return ""
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	return pathWalletTransacts + url.PathEscape(walletID) + "?" + v.Encode()
}

// WalletTransactions returns one page of a wallet's history
func (c *Client) WalletTransactions(ctx context.Context, walletID string, page, limit int) (model.WalletTransactionPage, error) {
	var p model.WalletTransactionPage
	err := c.do(ctx, http.MethodGet, WalletTransactionsPath(walletID, page, limit), nil, &p)
	return p, err
}

// CreateWithdraw submits a withdrawal request
func (c *Client) CreateWithdraw(ctx context.Context, req model.WithdrawRequest) (model.WithdrawResponse, error) {
	var w model.WithdrawResponse
	err := c.do(ctx, http.MethodPost, pathWithdraws, req, &w)
	return w, err
}

// GetWithdraw returns a single withdrawal
func (c *Client) GetWithdraw(ctx context.Context, id string) (model.WithdrawResponse, error) {
	var w model.WithdrawResponse
	err := c.do(ctx, http.MethodGet, pathWithdraws+"/"+url.PathEscape(id), nil, &w)
	return w, err
}

// Transfer sends money to another user
func (c *Client) Transfer(ctx context.Context, req model.TransferRequest) error {
	return c.do(ctx, http.MethodPost, pathTransfer, req, nil)
}

// UserSearchPath returns the path of a user search
func UserSearchPath(term string) string {
	return pathUserSearch + "?" + url.Values{"search": {term}}.Encode()
}

// CreateCryptoDeposit declares a crypto deposit
func (c *Client) CreateCryptoDeposit(ctx context.Context, req model.CryptoDepositRequest) error {
	return c.do(ctx, http.MethodPost, pathCryptoDeposits, req, nil)
}

// UpdateDepositStatus confirms or fails a crypto deposit
func (c *Client) UpdateDepositStatus(ctx context.Context, id string, status model.DepositStatus) error {
	body := model.UpdateDepositStatusRequest{Status: status}
	return c.do(ctx, http.MethodPatch, pathDepositStatus+url.PathEscape(id), body, nil)
}

// DepositAddress returns the address users pay crypto deposits into
func (c *Client) DepositAddress(ctx context.Context, crypto model.Crypto) (string, error) {
	var address string
	err := c.do(ctx, http.MethodGet, pathWalletAddress+string(crypto), nil, &address)
	return address, err
}

// UpdateAdminWallets replaces the deposit configuration
func (c *Client) UpdateAdminWallets(ctx context.Context, a model.AdminCryptoAddresses) error {
	return c.do(ctx, http.MethodPatch, PathAdminWallets, a, nil)
}

// UserListPath returns the path of a page of the user listing
func UserListPath(q model.PageQuery) string {
	return pathUserList + "?" + q.Values().Encode()
}

// UpdateAccountStatus suspends or reactivates a user
func (c *Client) UpdateAccountStatus(ctx context.Context, userID string, status model.AccountStatus) error {
	path := pathAccountStatus + url.PathEscape(userID) + "/" + string(status)
	return c.do(ctx, http.MethodPatch, path, nil, nil)
}

// DeleteUser removes a user account
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, pathDeleteAccount+url.PathEscape(userID), nil, nil)
}

// Package session holds the per-login state of the console: the bearer token,
// cached profile and wallet, admin listings and pending autosaves.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/fetch"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/queue"
	"github.com/simonkvalheim/hm9-console/internal/validation"
)

// ErrSettingsNotLoaded is returned when an address is edited before the configuration arrived
var ErrSettingsNotLoaded = errors.New("wallet settings have not been loaded yet")

// Options tunes the timers of every session
type Options struct {
	DebounceDelay     time.Duration // Delay before a changed listing is fetched
	ProfileMaxAge     time.Duration // The profile is reloaded on the next request once older than this
	WalletRefresh     time.Duration // Wallet and deposit settings polling interval; zero disables polling
	DepositSaveDelay  time.Duration // Quiet period before a deposit status change is saved
	SettingsSaveDelay time.Duration // Quiet period before wallet settings are saved
}

// DefaultOptions returns the timings the console ships with
func DefaultOptions() Options {
	return Options{
		DebounceDelay:     fetch.DefaultDelay,
		ProfileMaxAge:     30 * time.Second,
		WalletRefresh:     30 * time.Second,
		DepositSaveDelay:  250 * time.Millisecond,
		SettingsSaveDelay: 500 * time.Millisecond,
	}
}

// depositSaver autosaves the status an admin picked for one deposit
type depositSaver struct {
	status model.DepositStatus // guarded by Session.mu
	saver  *fetch.OnChange
}

// Session is the state of one logged-in browser session
type Session struct {
	ID string

	api    *apiclient.Client
	notes  queue.Queue
	opts   Options
	logger *slog.Logger

	// base is cancelled by Close
	base   context.Context
	cancel context.CancelFunc

	profile  *fetch.Fetcher[model.User]
	wallet   *fetch.Fetcher[model.Wallet]
	search   *fetch.Fetcher[[]model.User]
	users    *fetch.Fetcher[model.Page[model.User]]
	deposits *fetch.Fetcher[[]model.CryptoDeposit]
	settings *fetch.Fetcher[model.AdminCryptoAddresses]

	settingsSaver   *fetch.OnChange
	refreshDeposits *fetch.Debounced[string]

	mu            sync.Mutex
	user          *model.User
	userLoadedAt  time.Time
	settingsDraft model.AdminCryptoAddresses
	settingsEdits uint64 // Edits made to settingsDraft
	settingsSaved uint64 // Edits the server has accepted
	depositSavers map[string]*depositSaver
	lastSeen      time.Time
	closed        bool
}

func newSession(id string, api *apiclient.Client, notes queue.Queue, opts Options, logger *slog.Logger) *Session {
	base, cancel := context.WithCancel(context.Background())
	logger = logger.With("session", id)

	s := &Session{
		ID:            id,
		api:           api,
		notes:         notes,
		opts:          opts,
		logger:        logger,
		base:          base,
		cancel:        cancel,
		depositSavers: make(map[string]*depositSaver),
		lastSeen:      time.Now(),
	}

	s.profile = fetch.New(apiclient.Get[model.User](api), fetch.Options[model.User]{
		DebounceDelay: opts.DebounceDelay,
		Callback:      s.setUser,
		Logger:        logger,
	})
	s.wallet = fetch.New(apiclient.Get[model.Wallet](api), fetch.Options[model.Wallet]{
		DebounceDelay: opts.DebounceDelay,
		RefreshTime:   opts.WalletRefresh,
		Logger:        logger,
	})
	s.search = fetch.New(apiclient.Get[[]model.User](api), fetch.Options[[]model.User]{
		DebounceDelay: opts.DebounceDelay,
		Logger:        logger,
	})
	s.users = fetch.New(apiclient.Get[model.Page[model.User]](api), fetch.Options[model.Page[model.User]]{
		DebounceDelay: opts.DebounceDelay,
		Logger:        logger,
	})
	s.deposits = fetch.New(apiclient.Get[[]model.CryptoDeposit](api), fetch.Options[[]model.CryptoDeposit]{
		DebounceDelay: opts.DebounceDelay,
		Logger:        logger,
	})
	s.settings = fetch.New(apiclient.Get[model.AdminCryptoAddresses](api), fetch.Options[model.AdminCryptoAddresses]{
		DebounceDelay: opts.DebounceDelay,
		RefreshTime:   opts.WalletRefresh,
		Callback:      s.seedSettings,
		Logger:        logger,
	})

	s.settingsSaver = fetch.NewOnChange(s.saveSettings, opts.SettingsSaveDelay)
	s.refreshDeposits = fetch.NewDebounced(func(depositID string) {
		if err := s.deposits.Refetch(s.base); err != nil {
			s.logger.Warn("deposit list refresh failed", "deposit", depositID, "error", err)
		}
	}, opts.DepositSaveDelay)

	return s
}

// start begins loading the profile and wallet
func (s *Session) start() {
	s.profile.Update(apiclient.PathProfile)
	s.wallet.Update(apiclient.PathWallet)
}

// Close saves pending edits, then stops every timer and in-flight request
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	savers := make([]*fetch.OnChange, 0, len(s.depositSavers)+1)
	savers = append(savers, s.settingsSaver)
	for _, d := range s.depositSavers {
		savers = append(savers, d.saver)
	}
	s.mu.Unlock()

	for _, o := range savers {
		o.Flush()
		o.Close()
	}
	s.refreshDeposits.Close()

	s.profile.Close()
	s.wallet.Close()
	s.search.Close()
	s.users.Close()
	s.deposits.Close()
	s.settings.Close()
	s.cancel()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) setUser(u model.User) {
	s.mu.Lock()
	s.user = &u
	s.userLoadedAt = time.Now()
	s.mu.Unlock()
}

// User returns the profile once it has been loaded
func (s *Session) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// freshUser returns the profile if it was loaded within ProfileMaxAge
func (s *Session) freshUser() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || time.Since(s.userLoadedAt) >= s.opts.ProfileMaxAge {
		return model.User{}, false
	}
	return *s.user, true
}

// EnsureUser returns the profile, reloading it when it has not been loaded
// yet or is older than ProfileMaxAge, so suspensions and role changes made
// by an admin apply to live sessions. When a reload fails for a reason other
// than the token being rejected, the cached profile is used.
func (s *Session) EnsureUser(ctx context.Context) (model.User, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if u, ok := s.freshUser(); ok {
			return u, nil
		}

		err := s.profile.Refetch(ctx)
		switch {
		case err == nil:
			if u, ok := s.User(); ok {
				return u, nil
			}
		case errors.Is(err, fetch.ErrSuperseded):
			// A concurrent reload replaced ours
		case tokenRejected(err):
			return model.User{}, err
		default:
			if u, ok := s.User(); ok {
				s.logger.Warn("profile reload failed, using cached profile", "error", err)
				return u, nil
			}
			return model.User{}, err
		}
	}
	if u, ok := s.User(); ok {
		return u, nil
	}
	return model.User{}, model.ErrNotAuthenticated
}

// tokenRejected reports whether the banking API refused the session's token
func tokenRejected(err error) bool {
	switch apiclient.StatusCode(err, 0) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// Notify queues a message for the browser
func (s *Session) Notify(ctx context.Context, level queue.Level, title, message string) {
	n := queue.Notification{
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := s.notes.Publish(ctx, s.ID, n); err != nil {
		s.logger.Error("failed to queue notification", "title", title, "error", err)
	}
}

// Notifications returns and clears the pending notifications
func (s *Session) Notifications(ctx context.Context) ([]queue.Notification, error) {
	return s.notes.Drain(ctx, s.ID)
}

// WalletState returns the cached wallet
func (s *Session) WalletState() fetch.State[model.Wallet] {
	return s.wallet.State()
}

// RefreshWallet reloads the wallet immediately
func (s *Session) RefreshWallet(ctx context.Context) error {
	return s.wallet.Refetch(ctx)
}

// Balance returns the cached wallet balance, or nil before the wallet has loaded
func (s *Session) Balance() *decimal.Decimal {
	state := s.wallet.State()
	if !state.Fetched {
		return nil
	}
	b := state.Data.Balance
	return &b
}

// Transactions returns one page of the wallet history
func (s *Session) Transactions(ctx context.Context, page, limit int) (model.WalletTransactionPage, error) {
	state := s.wallet.State()
	if !state.Fetched || state.Data.ID == "" {
		return model.WalletTransactionPage{}, model.ErrWalletNotLoaded
	}
	return s.api.WalletTransactions(ctx, state.Data.ID, page, limit)
}

// SubmitWithdraw validates req against the cached balance, submits its
// normalized form and refreshes the wallet. Invalid requests never reach the
// banking API; their field errors are returned as validation.Errors.
func (s *Session) SubmitWithdraw(ctx context.Context, req model.WithdrawRequest) (model.WithdrawResponse, error) {
	if errs := validation.Form(req, s.Balance()); !errs.Valid() {
		return model.WithdrawResponse{}, errs
	}
	if err := req.Validate(); err != nil {
		return model.WithdrawResponse{}, err
	}

	resp, err := s.api.CreateWithdraw(ctx, validation.Normalize(req))
	if err != nil {
		return model.WithdrawResponse{}, fmt.Errorf("failed to submit withdrawal: %w", err)
	}

	if err := s.wallet.Refetch(ctx); err != nil {
		s.logger.Warn("wallet refresh after withdrawal failed", "error", err)
	}
	return resp, nil
}

// Withdraw returns a previously submitted withdrawal
func (s *Session) Withdraw(ctx context.Context, id string) (model.WithdrawResponse, error) {
	return s.api.GetWithdraw(ctx, id)
}

// Transfer sends money to another user and refreshes the wallet
func (s *Session) Transfer(ctx context.Context, req model.TransferRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.api.Transfer(ctx, req); err != nil {
		return fmt.Errorf("failed to transfer: %w", err)
	}

	if err := s.wallet.Refetch(ctx); err != nil {
		s.logger.Warn("wallet refresh after transfer failed", "error", err)
	}
	return nil
}

// SearchUsers points the debounced recipient search at term and returns
// the latest results
func (s *Session) SearchUsers(term string) fetch.State[[]model.User] {
	s.search.Update(apiclient.UserSearchPath(term))
	return s.search.State()
}

// Deposit declares a crypto deposit worth amountUSD
func (s *Session) Deposit(ctx context.Context, crypto model.Crypto, amountUSD decimal.Decimal) (model.CryptoDepositRequest, error) {
	req, err := model.NewCryptoDepositRequest(crypto, amountUSD)
	if err != nil {
		return req, err
	}
	if err := s.api.CreateCryptoDeposit(ctx, req); err != nil {
		return req, fmt.Errorf("failed to create deposit: %w", err)
	}
	return req, nil
}

// DepositAddress returns the address deposits in crypto are paid to
func (s *Session) DepositAddress(ctx context.Context, crypto model.Crypto) (string, error) {
	return s.api.DepositAddress(ctx, crypto)
}

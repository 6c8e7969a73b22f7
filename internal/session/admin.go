package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/fetch"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/queue"
)

// Users points the user listing at q and returns the latest page
func (s *Session) Users(q model.PageQuery) fetch.State[model.Page[model.User]] {
	s.users.Update(apiclient.UserListPath(q))
	return s.users.State()
}

// SetAccountStatus suspends or reactivates a user and reloads the listing
func (s *Session) SetAccountStatus(ctx context.Context, userID string, status model.AccountStatus) error {
	if err := s.api.UpdateAccountStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	msg := "Successfully activated user account"
	if status == model.AccountStatusSuspended {
		msg = "Successfully suspended user"
	}
	s.Notify(ctx, queue.LevelInfo, "Account updated", msg)

	if err := s.users.Refetch(ctx); err != nil {
		s.logger.Warn("user list refresh failed", "error", err)
	}
	return nil
}

// DeleteUser removes a user and reloads the listing
func (s *Session) DeleteUser(ctx context.Context, userID string) error {
	if err := s.api.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.Notify(ctx, queue.LevelInfo, "Account deleted", "Successfully deleted user account")

	if err := s.users.Refetch(ctx); err != nil {
		s.logger.Warn("user list refresh failed", "error", err)
	}
	return nil
}

// Deposits starts loading the latest deposits and returns what is cached
func (s *Session) Deposits() fetch.State[[]model.CryptoDeposit] {
	s.deposits.Update(apiclient.PathLatestDeposits)
	return s.deposits.State()
}

// SetDepositStatus records the status an admin picked for a deposit. The
// change is saved once the admin stops changing it; failures surface as
// notifications.
func (s *Session) SetDepositStatus(depositID string, status model.DepositStatus) error {
	if err := (model.UpdateDepositStatusRequest{Status: status}).Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fetch.ErrClosed
	}
	d, ok := s.depositSavers[depositID]
	if !ok {
		d = &depositSaver{}
		d.saver = fetch.NewOnChange(func(ctx context.Context) {
			s.saveDepositStatus(ctx, depositID, d)
		}, s.opts.DepositSaveDelay)
		// The listed status is the baseline; only a different pick is saved
		d.saver.Observe(s.listedStatus(depositID))
		s.depositSavers[depositID] = d
	}
	d.status = status
	s.mu.Unlock()

	d.saver.Observe(status)
	return nil
}

// listedStatus returns the status of a deposit in the cached listing, or "" when unknown
func (s *Session) listedStatus(depositID string) model.DepositStatus {
	for _, dep := range s.deposits.State().Data {
		if dep.ID == depositID {
			return dep.Status
		}
	}
	return ""
}

func (s *Session) saveDepositStatus(ctx context.Context, depositID string, d *depositSaver) {
	s.mu.Lock()
	status := d.status
	s.mu.Unlock()

	if err := s.api.UpdateDepositStatus(ctx, depositID, status); err != nil {
		s.logger.Warn("deposit status autosave failed", "deposit", depositID, "error", err)
		s.Notify(ctx, queue.LevelError, "An error occured", apiclient.Message(err))
		return
	}
	s.refreshDeposits.Call(depositID)
}

// Settings starts loading the deposit configuration and returns it, with
// unsaved edits applied
func (s *Session) Settings() fetch.State[model.AdminCryptoAddresses] {
	s.settings.Update(apiclient.PathAdminWallets)
	state := s.settings.State()

	s.mu.Lock()
	if !s.settingsDraft.IsZero() {
		state.Data = s.settingsDraft
	}
	s.mu.Unlock()
	return state
}

// seedSettings replaces the draft with a loaded configuration unless it
// holds edits that have not been saved yet
func (s *Session) seedSettings(a model.AdminCryptoAddresses) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settingsEdits != s.settingsSaved {
		return
	}
	s.settingsDraft = a
	s.settingsSaver.Rebase(a)
}

// SetWalletAddress edits the deposit address of crypto. The configuration
// is saved once edits stop arriving.
func (s *Session) SetWalletAddress(crypto model.Crypto, address string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fetch.ErrClosed
	}
	if s.settingsDraft.IsZero() {
		s.mu.Unlock()
		return ErrSettingsNotLoaded
	}
	if err := s.settingsDraft.SetAddress(crypto, address); err != nil {
		s.mu.Unlock()
		return err
	}
	s.settingsEdits++
	draft := s.settingsDraft
	s.mu.Unlock()

	s.settingsSaver.Observe(draft)
	return nil
}

func (s *Session) saveSettings(ctx context.Context) {
	s.mu.Lock()
	draft := s.settingsDraft
	edits := s.settingsEdits
	s.mu.Unlock()

	if draft.IsZero() {
		return
	}

	if err := draft.Validate(); err != nil {
		s.Notify(ctx, queue.LevelError, "An error occured when making change", err.Error())
		return
	}
	if err := s.api.UpdateAdminWallets(ctx, draft); err != nil {
		s.logger.Warn("wallet settings autosave failed", "error", err)
		s.Notify(ctx, queue.LevelError, "An error occured when making change", apiclient.Message(err))
		return
	}
	s.mu.Lock()
	if edits > s.settingsSaved {
		s.settingsSaved = edits
	}
	closed := s.closed
	s.mu.Unlock()

	s.Notify(ctx, queue.LevelInfo, "Success", "Wallet addresses updated successfully")

	if closed {
		return
	}
	// Pick up whatever the server stored, including edits by other admins
	if err := s.settings.Refetch(ctx); err != nil && !errors.Is(err, fetch.ErrClosed) && !errors.Is(err, fetch.ErrSuperseded) {
		s.logger.Warn("wallet settings reload failed", "error", err)
	}
}

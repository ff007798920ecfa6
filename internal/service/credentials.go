// Package service contains the business logic layer of the application.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/repository"
)

// AllowedAccount is one bootstrap allow-list entry.
type AllowedAccount struct {
	Email string `yaml:"email"`
	Login string `yaml:"login"`
}

// CredentialOptions configures the credential service.
type CredentialOptions struct {
	// AllowedDomain is the email domain accounts must belong to,
	// e.g. "normaq.com.br". Empty disables the check.
	AllowedDomain string
	// ProvisionalPassword is assigned at bootstrap, creation, and admin
	// reset; the holder must replace it on first login.
	ProvisionalPassword string
	// PlaintextHistory, when true, stores password history entries as
	// plaintext for administrator visibility. Off by default: entries are
	// then bcrypt hashes and nothing recoverable is retained.
	PlaintextHistory bool
}

// CredentialService owns account state: bootstrap, password lifecycle,
// verification, deletion. It is the only code that writes PasswordHash.
type CredentialService struct {
	repo      repository.AccountRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
	opts      CredentialOptions
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(
	repo repository.AccountRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
	opts CredentialOptions,
) *CredentialService {
	return &CredentialService{
		repo:      repo,
		passwords: passwords,
		logger:    logger,
		opts:      opts,
	}
}

// Bootstrap seeds one account per allow-list entry with the provisional
// password. Entries whose login already exists are left untouched, so
// re-running at every startup is safe.
func (s *CredentialService) Bootstrap(ctx context.Context, allowed []AllowedAccount) error {
	for _, entry := range allowed {
		_, err := s.repo.Get(ctx, entry.Login)
		if err == nil {
			continue
		}

		if err := s.Create(ctx, entry.Login, entry.Email, s.opts.ProvisionalPassword); err != nil {
			return fmt.Errorf("bootstrapping account %q: %w", entry.Login, err)
		}
		s.logger.Info("bootstrapped account",
			slog.String("login", entry.Login),
			slog.String("email", entry.Email),
		)
	}
	return nil
}

// Heal repairs accounts that predate optional fields: missing IDs and
// timestamps get defaults, an empty history is seeded from the provisional
// default (the hash's plaintext is not recoverable from bcrypt). Healed
// accounts are persisted immediately.
func (s *CredentialService) Heal(ctx context.Context) error {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading accounts for healing: %w", err)
	}

	for i := range accounts {
		acc := &accounts[i]
		healed := false

		if acc.ID == "" {
			acc.ID = xid.New().String()
			healed = true
		}
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = time.Now()
			healed = true
		}
		if acc.UpdatedAt.IsZero() {
			acc.UpdatedAt = acc.CreatedAt
			healed = true
		}
		if len(acc.PasswordHistory) == 0 {
			entry, err := s.historyEntry(s.opts.ProvisionalPassword)
			if err != nil {
				return err
			}
			acc.PasswordHistory = []string{entry}
			healed = true
		}

		if healed {
			if err := s.repo.Put(ctx, acc); err != nil {
				return fmt.Errorf("persisting healed account %q: %w", acc.Login, err)
			}
			s.logger.Info("healed account record", slog.String("login", acc.Login))
		}
	}
	return nil
}

// Create inserts a new account with the given provisional password and the
// first-login flag armed.
func (s *CredentialService) Create(ctx context.Context, login, email, provisional string) error {
	login = strings.TrimSpace(login)
	if login == "" {
		return apperror.ValidationFailed("login", "login is required")
	}
	if provisional == "" {
		return apperror.ValidationFailed("password", "provisional password must not be empty")
	}
	if err := s.checkDomain(email); err != nil {
		return err
	}

	if _, err := s.repo.Get(ctx, login); err == nil {
		return apperror.DuplicateAccount(login)
	}

	hash, err := s.passwords.Hash(provisional)
	if err != nil {
		return err
	}
	entry, err := s.historyEntry(provisional)
	if err != nil {
		return err
	}

	now := time.Now()
	acc := &model.Account{
		ID:              xid.New().String(),
		Login:           login,
		Email:           email,
		PasswordHash:    hash,
		PasswordHistory: []string{entry},
		FirstLogin:      true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Put(ctx, acc); err != nil {
		return fmt.Errorf("storing account %q: %w", login, err)
	}

	s.logger.Info("account created", slog.String("login", login))
	return nil
}

// SetPassword replaces the account's password with one chosen by the
// holder and clears the first-login flag. This is the single write path
// for PasswordHash.
func (s *CredentialService) SetPassword(ctx context.Context, login, newPassword string) error {
	return s.setPassword(ctx, login, newPassword, false)
}

// ResetPassword is the administrator path: the account goes back to a
// provisional password and the holder must change it on next login.
func (s *CredentialService) ResetPassword(ctx context.Context, login, provisional string) error {
	return s.setPassword(ctx, login, provisional, true)
}

func (s *CredentialService) setPassword(ctx context.Context, login, newPassword string, firstLogin bool) error {
	if newPassword == "" {
		return apperror.ValidationFailed("password", "password must not be empty")
	}

	acc, err := s.repo.Get(ctx, login)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash

	// Append to the history only when the password actually changed
	// relative to the last entry.
	if !s.repeatsLastEntry(acc.PasswordHistory, newPassword) {
		entry, err := s.historyEntry(newPassword)
		if err != nil {
			return err
		}
		acc.PasswordHistory = append(acc.PasswordHistory, entry)
		if overflow := len(acc.PasswordHistory) - model.HistoryCap; overflow > 0 {
			acc.PasswordHistory = acc.PasswordHistory[overflow:]
		}
	}

	acc.FirstLogin = firstLogin
	acc.UpdatedAt = time.Now()

	if err := s.repo.Put(ctx, acc); err != nil {
		return fmt.Errorf("storing password change for %q: %w", login, err)
	}

	s.logger.Info("password set",
		slog.String("login", login),
		slog.Bool("provisional", firstLogin),
	)
	return nil
}

// Verify reports whether the candidate password matches the account's
// current hash. Unknown logins verify false; the caller reports both
// failures identically.
func (s *CredentialService) Verify(ctx context.Context, login, candidate string) bool {
	acc, err := s.repo.Get(ctx, login)
	if err != nil {
		return false
	}
	return s.passwords.Matches(acc.PasswordHash, candidate)
}

// Get returns one account.
func (s *CredentialService) Get(ctx context.Context, login string) (*model.Account, error) {
	return s.repo.Get(ctx, login)
}

// List returns all accounts in login order.
func (s *CredentialService) List(ctx context.Context) ([]model.Account, error) {
	return s.repo.List(ctx)
}

// Delete removes an account permanently. The last remaining account cannot
// be deleted; the store is left unchanged in that case.
func (s *CredentialService) Delete(ctx context.Context, login string) error {
	if _, err := s.repo.Get(ctx, login); err != nil {
		return err
	}

	n, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting accounts: %w", err)
	}
	if n <= 1 {
		return apperror.LastAccount(login)
	}

	if err := s.repo.Delete(ctx, login); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.String("login", login))
	return nil
}

// PlaintextHistory reports whether history entries are stored as plaintext.
func (s *CredentialService) PlaintextHistory() bool {
	return s.opts.PlaintextHistory
}

// historyEntry encodes one password for the history: verbatim in plaintext
// mode, bcrypt hash otherwise.
func (s *CredentialService) historyEntry(password string) (string, error) {
	if s.opts.PlaintextHistory {
		return password, nil
	}
	return s.passwords.Hash(password)
}

// repeatsLastEntry reports whether newPassword equals the newest history
// entry under the current history mode.
func (s *CredentialService) repeatsLastEntry(history []string, newPassword string) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	if s.opts.PlaintextHistory {
		return last == newPassword
	}
	return s.passwords.Matches(last, newPassword)
}

func (s *CredentialService) checkDomain(email string) error {
	if s.opts.AllowedDomain == "" {
		return nil
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.EqualFold(email[at+1:], s.opts.AllowedDomain) {
		return apperror.InvalidEmailDomain(email, s.opts.AllowedDomain)
	}
	return nil
}

// Package session drives the login state machine over the credential
// service.
//
// States: LoggedOut -> ForcedPasswordChange -> Active -> LoggedOut. A
// submitted login lands in Active directly when the account holder has
// already set their own password; while the first-login flag is set, the
// only permitted operation is choosing a new password. Because the HTTP
// shell is stateless, the current state travels in the token's scope and
// every transition re-checks the credential store.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/service"
)

// State of a session as reported to the client.
type State string

const (
	StateLoggedOut            State = "logged_out"
	StateForcedPasswordChange State = "password_change_required"
	StateActive               State = "active"
)

// Session is the outcome of a successful transition.
type Session struct {
	Login string
	State State
	Token string
}

// Manager performs the state transitions.
type Manager struct {
	creds  *service.CredentialService
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewManager creates a session manager.
func NewManager(creds *service.CredentialService, tokens *auth.TokenService, logger *slog.Logger) *Manager {
	return &Manager{
		creds:  creds,
		tokens: tokens,
		logger: logger,
	}
}

// Submit attempts a login. A wrong password and an unknown login produce
// the same AuthenticationError. With the first-login flag set the session
// enters ForcedPasswordChange and carries a token that can only set a new
// password; otherwise it is Active.
func (m *Manager) Submit(ctx context.Context, login, password string) (*Session, error) {
	if !m.creds.Verify(ctx, login, password) {
		m.logger.Warn("login rejected", slog.String("login", login))
		return nil, apperror.AuthenticationFailed()
	}

	acc, err := m.creds.Get(ctx, login)
	if err != nil {
		return nil, apperror.AuthenticationFailed()
	}

	if acc.FirstLogin {
		token, err := m.tokens.Issue(login, auth.ScopePasswordChange)
		if err != nil {
			return nil, fmt.Errorf("session: issuing password-change token: %w", err)
		}
		m.logger.Info("login accepted, password change required", slog.String("login", login))
		return &Session{Login: login, State: StateForcedPasswordChange, Token: token}, nil
	}

	token, err := m.tokens.Issue(login, auth.ScopeSession)
	if err != nil {
		return nil, fmt.Errorf("session: issuing session token: %w", err)
	}
	m.logger.Info("login accepted", slog.String("login", login))
	return &Session{Login: login, State: StateActive, Token: token}, nil
}

// SetNewPassword completes the forced password change and transitions the
// session to Active.
func (m *Manager) SetNewPassword(ctx context.Context, login, password, confirm string) (*Session, error) {
	if err := validateNewPassword(password, confirm); err != nil {
		return nil, err
	}

	if err := m.creds.SetPassword(ctx, login, password); err != nil {
		return nil, err
	}

	token, err := m.tokens.Issue(login, auth.ScopeSession)
	if err != nil {
		return nil, fmt.Errorf("session: issuing session token: %w", err)
	}
	return &Session{Login: login, State: StateActive, Token: token}, nil
}

// ChangePassword changes the password of an Active session. The current
// password is required; the session stays Active.
func (m *Manager) ChangePassword(ctx context.Context, login, current, password, confirm string) error {
	if !m.creds.Verify(ctx, login, current) {
		return apperror.AuthenticationFailed()
	}
	if err := validateNewPassword(password, confirm); err != nil {
		return err
	}
	return m.creds.SetPassword(ctx, login, password)
}

// Logout ends a session. Tokens are stateless, so the transition is purely
// client-side (discarding the token); this exists so the state machine is
// complete and the event is logged.
func (m *Manager) Logout(login string) State {
	m.logger.Info("logout", slog.String("login", login))
	return StateLoggedOut
}

func validateNewPassword(password, confirm string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password must not be empty")
	}
	if password != confirm {
		return apperror.ValidationFailed("confirm", "passwords do not match")
	}
	return nil
}

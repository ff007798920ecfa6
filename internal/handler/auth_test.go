package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/service"
	"github.com/normaq/clientbook/internal/session"
)

// memRepo is the same in-memory account repository the session tests use.
type memRepo struct {
	accounts map[string]*model.Account
}

func (m *memRepo) Get(ctx context.Context, login string) (*model.Account, error) {
	acc, ok := m.accounts[login]
	if !ok {
		return nil, apperror.UnknownAccount(login)
	}
	return acc.Clone(), nil
}

func (m *memRepo) List(ctx context.Context) ([]model.Account, error) {
	out := make([]model.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, *acc.Clone())
	}
	return out, nil
}

func (m *memRepo) Count(ctx context.Context) (int, error) { return len(m.accounts), nil }

func (m *memRepo) Put(ctx context.Context, account *model.Account) error {
	m.accounts[account.Login] = account.Clone()
	return nil
}

func (m *memRepo) Delete(ctx context.Context, login string) error {
	delete(m.accounts, login)
	return nil
}

func newTestAuthHandler(t *testing.T) (*AuthHandler, *service.CredentialService, *auth.TokenService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := service.NewCredentialService(
		&memRepo{accounts: make(map[string]*model.Account)},
		auth.NewPasswordServiceForTest(bcrypt.MinCost),
		logger,
		service.CredentialOptions{ProvisionalPassword: "P@ss1"},
	)
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	return NewAuthHandler(session.NewManager(creds, tokens, logger), logger), creds, tokens
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(encoded))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleLoginActive(t *testing.T) {
	h, creds, _ := newTestAuthHandler(t)
	ctx := context.Background()

	require.NoError(t, creds.Create(ctx, "maria", "maria@normaq.com.br", "P@ss1"))
	require.NoError(t, creds.SetPassword(ctx, "maria", "MyOwn2"))

	rec := postJSON(t, h.HandleLogin, map[string]string{
		"login":    "maria",
		"password": "MyOwn2",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Login string `json:"login"`
		State string `json:"state"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "maria", resp.Login)
	assert.Equal(t, string(session.StateActive), resp.State)
	assert.NotEmpty(t, resp.Token)

	// The token also lands in an HttpOnly cookie.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestHandleLoginFirstLogin(t *testing.T) {
	h, creds, tokens := newTestAuthHandler(t)

	require.NoError(t, creds.Create(context.Background(), "maria", "maria@normaq.com.br", "P@ss1"))

	rec := postJSON(t, h.HandleLogin, map[string]string{
		"login":    "maria",
		"password": "P@ss1",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State string `json:"state"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(session.StateForcedPasswordChange), resp.State)

	id, err := tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.ScopePasswordChange, id.Scope)
}

func TestHandleLoginRejected(t *testing.T) {
	h, creds, _ := newTestAuthHandler(t)

	require.NoError(t, creds.Create(context.Background(), "maria", "maria@normaq.com.br", "P@ss1"))

	rec := postJSON(t, h.HandleLogin, map[string]string{
		"login":    "maria",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "authentication_error", resp.Error)
}

func TestHandleLoginBadBody(t *testing.T) {
	h, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPasswordScopeEnforced(t *testing.T) {
	h, creds, tokens := newTestAuthHandler(t)
	ctx := context.Background()

	require.NoError(t, creds.Create(ctx, "maria", "maria@normaq.com.br", "P@ss1"))

	// Route the handler through the middleware exactly as the server does.
	protected := auth.RequireScope(tokens, auth.ScopePasswordChange)(
		http.HandlerFunc(h.HandleSetPassword))

	body, _ := json.Marshal(map[string]string{
		"newPassword": "MyOwn2",
		"confirm":     "MyOwn2",
	})

	// A full session token must not reach the forced-change endpoint.
	sessionToken, err := tokens.Issue("maria", auth.ScopeSession)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The password-change token goes through and upgrades the session.
	changeToken, err := tokens.Issue("maria", auth.ScopePasswordChange)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+changeToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, creds.Verify(ctx, "maria", "MyOwn2"))

	acc, err := creds.Get(ctx, "maria")
	require.NoError(t, err)
	assert.False(t, acc.FirstLogin)
}

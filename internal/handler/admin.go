package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/service"
)

// AdminHandler exposes account administration. Every route except the
// token exchange sits behind the admin-scope middleware.
type AdminHandler struct {
	creds       *service.CredentialService
	admins      *auth.AdminRegistry
	provisional string
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler. provisional is the password
// assigned on create and reset.
func NewAdminHandler(
	creds *service.CredentialService,
	admins *auth.AdminRegistry,
	provisional string,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		creds:       creds,
		admins:      admins,
		provisional: provisional,
		logger:      logger,
	}
}

// HandleToken is POST /api/admin/token: exchanges a principal's own
// credentials for a short-lived admin capability token.
func (h *AdminHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal string `json:"principal"`
		Secret    string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	token, err := h.admins.Authorize(req.Principal, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HandleCreateAccount is POST /api/admin/accounts. The new account gets
// the provisional password and must change it on first login.
func (h *AdminHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.creds.Create(r.Context(), req.Login, req.Email, h.provisional); err != nil {
		writeError(w, err)
		return
	}

	h.logAdminAction(r, "account created", req.Login)
	w.WriteHeader(http.StatusCreated)
}

// HandleDeleteAccount is DELETE /api/admin/accounts/{login}.
func (h *AdminHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")
	if login == "" {
		writeError(w, apperror.ValidationFailed("login", "login is required"))
		return
	}

	if err := h.creds.Delete(r.Context(), login); err != nil {
		writeError(w, err)
		return
	}

	h.logAdminAction(r, "account deleted", login)
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetAccount is POST /api/admin/accounts/{login}/reset: back to
// the provisional password with the forced change re-armed.
func (h *AdminHandler) HandleResetAccount(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")
	if login == "" {
		writeError(w, apperror.ValidationFailed("login", "login is required"))
		return
	}

	if err := h.creds.ResetPassword(r.Context(), login, h.provisional); err != nil {
		writeError(w, err)
		return
	}

	h.logAdminAction(r, "password reset", login)
	w.WriteHeader(http.StatusNoContent)
}

// accountView is the admin listing shape. The hash never leaves the
// service; history appears only when plaintext retention is enabled.
type accountView struct {
	Login           string    `json:"login"`
	Email           string    `json:"email"`
	FirstLogin      bool      `json:"firstLogin"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	PasswordHistory []string  `json:"passwordHistory,omitempty"`
	HistoryLength   int       `json:"historyLength"`
}

// HandleListAccounts is GET /api/admin/accounts.
func (h *AdminHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.creds.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, h.view(acc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) view(acc model.Account) accountView {
	v := accountView{
		Login:         acc.Login,
		Email:         acc.Email,
		FirstLogin:    acc.FirstLogin,
		CreatedAt:     acc.CreatedAt,
		UpdatedAt:     acc.UpdatedAt,
		HistoryLength: len(acc.PasswordHistory),
	}
	if h.creds.PlaintextHistory() {
		v.PasswordHistory = acc.PasswordHistory
	}
	return v
}

func (h *AdminHandler) logAdminAction(r *http.Request, action, login string) {
	principal := "unknown"
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		principal = id.Subject
	}
	h.logger.Info(action,
		slog.String("login", login),
		slog.String("admin", principal),
	)
}

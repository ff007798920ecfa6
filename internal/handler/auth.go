// Package handler contains the HTTP layer: request parsing, response
// shaping, nothing else. Business rules live in the services.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/session"
)

// AuthHandler exposes the session state machine over HTTP.
type AuthHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: logger}
}

type sessionResponse struct {
	Login string        `json:"login"`
	State session.State `json:"state"`
	Token string        `json:"token"`
}

// HandleLogin is POST /api/login.
//
// Body: {"login": "...", "password": "..."}. A first login answers with
// state "password_change_required" and a token that can only be used to
// set a new password.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	sess, err := h.sessions.Submit(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, sessionResponse{
		Login: sess.Login,
		State: sess.State,
		Token: sess.Token,
	})
}

// HandleSetPassword is POST /api/password, reachable only with a
// password-change token. It completes the forced first-login change.
func (h *AuthHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthenticationFailed())
		return
	}

	var req struct {
		NewPassword string `json:"newPassword"`
		Confirm     string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	sess, err := h.sessions.SetNewPassword(r.Context(), id.Subject, req.NewPassword, req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, sessionResponse{
		Login: sess.Login,
		State: sess.State,
		Token: sess.Token,
	})
}

// HandleChangePassword is POST /api/password/change for an active session.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthenticationFailed())
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		Confirm         string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), id.Subject,
		req.CurrentPassword, req.NewPassword, req.Confirm); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleLogout is POST /api/logout. Tokens are stateless, so logout clears
// the cookie; the client discards any copy it holds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		h.sessions.Logout(id.Subject)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

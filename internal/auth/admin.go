package auth

import (
	"fmt"
	"log/slog"

	"github.com/normaq/clientbook/internal/apperror"
)

// AdminPrincipal is one named administrator credential. Secrets are stored
// as bcrypt hashes in the seed file, never as the shared plaintext string
// older revisions of this tool used.
type AdminPrincipal struct {
	Name       string `yaml:"name"`
	SecretHash string `yaml:"secret_hash"`
}

// AdminRegistry exchanges per-principal admin credentials for short-lived
// admin capability tokens. It is deliberately separate from the staff
// session flow: an admin token names its principal and authorizes account
// and record administration, nothing else.
type AdminRegistry struct {
	principals map[string]AdminPrincipal
	passwords  *PasswordService
	tokens     *TokenService
	logger     *slog.Logger
}

// NewAdminRegistry creates a registry over the configured principals.
func NewAdminRegistry(
	principals []AdminPrincipal,
	passwords *PasswordService,
	tokens *TokenService,
	logger *slog.Logger,
) *AdminRegistry {
	byName := make(map[string]AdminPrincipal, len(principals))
	for _, p := range principals {
		byName[p.Name] = p
	}
	return &AdminRegistry{
		principals: byName,
		passwords:  passwords,
		tokens:     tokens,
		logger:     logger,
	}
}

// Authorize verifies the principal's secret and issues an admin token.
// Unknown principals and wrong secrets fail identically.
func (r *AdminRegistry) Authorize(name, secret string) (string, error) {
	p, ok := r.principals[name]
	if !ok || !r.passwords.Matches(p.SecretHash, secret) {
		r.logger.Warn("admin authorization rejected", slog.String("principal", name))
		return "", apperror.AuthorizationFailed()
	}

	token, err := r.tokens.Issue(name, ScopeAdmin)
	if err != nil {
		return "", fmt.Errorf("auth: issuing admin token for %q: %w", name, err)
	}

	r.logger.Info("admin token issued", slog.String("principal", name))
	return token, nil
}

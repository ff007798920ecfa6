package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// Scope says what a token is allowed to do. A login that still has the
// first-login flag set gets a password-change-only token; completing the
// change upgrades it to a full session.
type Scope string

const (
	// ScopeSession is a fully authenticated staff session.
	ScopeSession Scope = "session"
	// ScopePasswordChange only permits setting a new password.
	ScopePasswordChange Scope = "password_change"
	// ScopeAdmin is an administrative capability token, issued against an
	// admin principal's own credentials, never against a staff session.
	ScopeAdmin Scope = "admin"
)

const (
	sessionTTL        = 8 * time.Hour
	passwordChangeTTL = 10 * time.Minute
	adminTTL          = 30 * time.Minute
)

const issuer = "clientbook"

// TokenService signs and verifies the HMAC tokens that carry identity
// between requests. The same secret signs session and admin tokens; the
// scope claim keeps them apart.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Identity is what a validated token resolves to.
type Identity struct {
	Subject string // staff login or admin principal name
	Scope   Scope
}

type claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

func (s *TokenService) ttlFor(scope Scope) time.Duration {
	switch scope {
	case ScopePasswordChange:
		return passwordChangeTTL
	case ScopeAdmin:
		return adminTTL
	default:
		return sessionTTL
	}
}

// Issue signs a token for the given subject and scope.
func (s *TokenService) Issue(subject string, scope Scope) (string, error) {
	now := time.Now()

	c := claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttlFor(scope))),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string and returns its identity.
// Expired, tampered, or wrongly-signed tokens all return an error.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	var c claims

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(t *jwt.Token) (any, error) {
			// Reject tokens signed with anything but HMAC. Without this
			// check a token with alg=none would pass.
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return Identity{}, errors.New("auth: invalid token")
	}

	return Identity{Subject: c.Subject, Scope: c.Scope}, nil
}

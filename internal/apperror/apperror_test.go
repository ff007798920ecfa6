package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "AuthenticationFailed wraps ErrAuthentication",
			err:       AuthenticationFailed(),
			target:    ErrAuthentication,
			wantMatch: true,
		},
		{
			name:      "DuplicateAccount wraps ErrDuplicateAccount",
			err:       DuplicateAccount("maria"),
			target:    ErrDuplicateAccount,
			wantMatch: true,
		},
		{
			name:      "LastAccount wraps ErrLastAccount",
			err:       LastAccount("admin"),
			target:    ErrLastAccount,
			wantMatch: true,
		},
		{
			name:      "SourceUnavailable wraps ErrSourceUnavailable",
			err:       SourceUnavailable("carteira", errors.New("dial tcp: timeout")),
			target:    ErrSourceUnavailable,
			wantMatch: true,
		},
		{
			name:      "wrapped UnknownAccount still matches through fmt.Errorf",
			err:       fmt.Errorf("resetting password: %w", UnknownAccount("ghost")),
			target:    ErrUnknownAccount,
			wantMatch: true,
		},
		{
			name:      "UnknownAccount does not match ErrDuplicateAccount",
			err:       UnknownAccount("ghost"),
			target:    ErrDuplicateAccount,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestAuthenticationMessageDoesNotNameTheCause(t *testing.T) {
	// The login/password error is deliberately symmetric.
	msg := AuthenticationFailed().Error()
	for _, word := range []string{"unknown", "hash", "missing"} {
		if strings.Contains(strings.ToLower(msg), word) {
			t.Errorf("message %q leaks failure cause (%q)", msg, word)
		}
	}
}

func TestErrorsAsExtractsAppError(t *testing.T) {
	err := fmt.Errorf("creating account: %w", InvalidEmailDomain("x@evil.com", "normaq.com.br"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() failed to extract *AppError")
	}
	if appErr.Field != "email" {
		t.Errorf("Field = %q, want %q", appErr.Field, "email")
	}
}

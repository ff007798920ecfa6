// Package apperror defines the error taxonomy shared by all layers.
//
// Services return these domain errors; the HTTP layer maps them to status
// codes with errors.Is/errors.As. Sentinel values classify the failure,
// *AppError carries the human-readable message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication covers a bad login or password. The message never
	// says which of the two was wrong.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization covers a rejected admin credential.
	ErrAuthorization = errors.New("authorization failed")
	// ErrDuplicateAccount is returned when creating a login that already exists.
	ErrDuplicateAccount = errors.New("duplicate account")
	// ErrUnknownAccount is returned when the login does not exist.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrLastAccount guards deletion of the only remaining account.
	ErrLastAccount = errors.New("last account")
	// ErrInvalidEmailDomain is returned when an email is outside the allowed domain.
	ErrInvalidEmailDomain = errors.New("invalid email domain")
	// ErrColumnNotFound is returned when no table header matches a field name.
	ErrColumnNotFound = errors.New("column not found")
	// ErrSourceUnavailable is returned when the tabular source cannot be
	// reached and no cached snapshot can stand in.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrCorruptStore is returned when the account file cannot be parsed.
	ErrCorruptStore = errors.New("corrupt account store")
	// ErrValidation covers malformed or rejected input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers missing records and rows.
	ErrNotFound = errors.New("not found")
)

// AppError pairs a sentinel error with a message safe to show the caller.
type AppError struct {
	Err     error  // sentinel classifying the failure
	Message string // human-readable, never contains hashes or secrets
	Field   string // optional: input field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func AuthenticationFailed() *AppError {
	return &AppError{
		Err:     ErrAuthentication,
		Message: "invalid login or password",
	}
}

func AuthorizationFailed() *AppError {
	return &AppError{
		Err:     ErrAuthorization,
		Message: "admin credentials rejected",
	}
}

func DuplicateAccount(login string) *AppError {
	return &AppError{
		Err:     ErrDuplicateAccount,
		Message: fmt.Sprintf("account %q already exists", login),
	}
}

func UnknownAccount(login string) *AppError {
	return &AppError{
		Err:     ErrUnknownAccount,
		Message: fmt.Sprintf("no account with login %q", login),
	}
}

func LastAccount(login string) *AppError {
	return &AppError{
		Err:     ErrLastAccount,
		Message: fmt.Sprintf("cannot delete %q: it is the last remaining account", login),
	}
}

func InvalidEmailDomain(email, domain string) *AppError {
	return &AppError{
		Err:     ErrInvalidEmailDomain,
		Message: fmt.Sprintf("email %q is not in the allowed domain %q", email, domain),
		Field:   "email",
	}
}

func ColumnNotFound(name string) *AppError {
	return &AppError{
		Err:     ErrColumnNotFound,
		Message: fmt.Sprintf("no column matches field %q", name),
		Field:   name,
	}
}

// SourceUnavailable wraps the transport error so callers can distinguish
// "nothing happened" from "partially happened" in logs, while the message
// stays presentable.
func SourceUnavailable(tableID string, cause error) *AppError {
	return &AppError{
		Err:     ErrSourceUnavailable,
		Message: fmt.Sprintf("tabular source unavailable for table %q: %v", tableID, cause),
	}
}

func CorruptStore(path string, cause error) *AppError {
	return &AppError{
		Err:     ErrCorruptStore,
		Message: fmt.Sprintf("account store %s is unreadable: %v", path, cause),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

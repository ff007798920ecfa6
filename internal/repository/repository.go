// Package repository declares the storage interfaces the service layer
// programs against.
package repository

import (
	"context"

	"github.com/normaq/clientbook/internal/model"
)

// AccountRepository is durable storage for staff accounts, keyed by login.
//
// Implementations persist every mutation before returning and keep the
// previous valid state recoverable (backup-before-overwrite). Get and List
// return copies; mutating a returned account does not touch the store.
type AccountRepository interface {
	// Get returns the account or apperror.ErrUnknownAccount.
	Get(ctx context.Context, login string) (*model.Account, error)
	// List returns all accounts in stable (login) order.
	List(ctx context.Context) ([]model.Account, error)
	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)
	// Put inserts or replaces the account under account.Login.
	Put(ctx context.Context, account *model.Account) error
	// Delete removes the login or returns apperror.ErrUnknownAccount.
	Delete(ctx context.Context, login string) error
}

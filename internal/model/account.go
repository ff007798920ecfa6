// Package model defines the data structures used throughout the application.
package model

import "time"

// Account is a staff account in the credential store.
//
// Login is the unique key and never changes after creation. PasswordHash is
// a bcrypt digest and is only ever written by the credential service's
// SetPassword path. PasswordHistory records each password ever set, newest
// last, capped at HistoryCap entries; depending on configuration the entries
// are plaintext (admin visibility mode) or bcrypt hashes.
type Account struct {
	ID              string    `json:"id"`
	Login           string    `json:"login"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"passwordHash"`
	PasswordHistory []string  `json:"passwordHistory"`
	FirstLogin      bool      `json:"firstLogin"` // true until the holder sets their own password
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HistoryCap bounds PasswordHistory. Older entries are discarded first.
const HistoryCap = 15

// Clone returns a deep copy so callers can hand accounts out without
// aliasing the store's history slice.
func (a *Account) Clone() *Account {
	c := *a
	c.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	return &c
}

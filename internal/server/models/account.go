// Package models holds the persisted entities of the identity core.
package models

import (
	"database/sql"
	"time"
)

// Provider identifies how an account authenticates: with a password we
// store (local) or through a third-party identity callback (external).
// Immutable after creation.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderExternal Provider = "external"
)

// Account is the single identity record. Local accounts carry
// PasswordHash and never ExternalID; external accounts carry ExternalID
// and never PasswordHash. Verification and reset tokens are tagged
// optional pairs: present while the corresponding window is open,
// cleared once consumed.
type Account struct {
	ID                     string
	Email                  string
	Name                   string
	PasswordHash           sql.NullString
	Provider               Provider
	ExternalID             sql.NullString
	AvatarURL              sql.NullString
	EmailVerified          bool
	EmailVerificationToken sql.NullString
	ResetPasswordToken     sql.NullString
	ResetPasswordExpiresAt sql.NullTime
	Role                   Role
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Sanitized returns a copy with credentials and single-use tokens removed.
// Everything handed back to callers outside the core goes through this.
func (a *Account) Sanitized() *Account {
	c := *a
	c.PasswordHash = sql.NullString{}
	c.EmailVerificationToken = sql.NullString{}
	c.ResetPasswordToken = sql.NullString{}
	c.ResetPasswordExpiresAt = sql.NullTime{}
	return &c
}

// ResetWindowOpen reports whether the account holds a reset token that is
// still live at the given instant. A token expiring exactly at now is
// already inert.
func (a *Account) ResetWindowOpen(now time.Time) bool {
	return a.ResetPasswordToken.Valid &&
		a.ResetPasswordExpiresAt.Valid &&
		a.ResetPasswordExpiresAt.Time.After(now)
}

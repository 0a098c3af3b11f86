// Package common defines shared constants and sentinel errors used across
// AccountKeeper components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Role-transition errors.
	ErrorSuperAdminExists = errors.New("only one super admin allowed")
	ErrorRoleTransition   = errors.New("invalid role transition")

	// Token lifecycle errors (invalid, consumed or expired token).
	ErrInvalidToken = errors.New("invalid token")
)

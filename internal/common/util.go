package common

import "strings"

// NormalizeEmail lowercases and trims an email address. Every store lookup
// and every write goes through this so that uniqueness checks are
// case-insensitive regardless of what the transport hands us.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GenericResetMessage is returned by forgot-password flows whether or not
// the account exists, to avoid leaking account existence.
const GenericResetMessage = "if the email is registered, a reset link has been sent"

// GenericVerificationMessage is the anti-enumeration response for
// verification helper operations.
const GenericVerificationMessage = "if the email is registered, a verification link has been sent"

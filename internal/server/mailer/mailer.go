// Package mailer delivers verification and password-reset links. The core
// treats delivery as fire-and-forget: callers decide whether a send
// failure is fatal, the mailer only reports it.
package mailer

import "context"

// Notifier is the outbound email boundary consumed by the lifecycle
// service.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendResetEmail(ctx context.Context, email, token string) error
}

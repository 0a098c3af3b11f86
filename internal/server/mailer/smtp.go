package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/sethvargo/go-retry"
)

// SMTPMailer sends mail through a plain SMTP relay. Transient failures are
// retried with fibonacci backoff; after the attempt budget is spent the
// last error is returned and the caller's posture decides what happens.
type SMTPMailer struct {
	addr        string
	from        string
	baseURL     string
	maxRetries  uint64
	baseBackoff time.Duration

	// sendMail is a seam for testing smtp.SendMail.
	sendMail func(addr, from string, to []string, msg []byte) error
}

func NewSMTPMailer(addr, from, baseURL string) *SMTPMailer {
	return &SMTPMailer{
		addr:        addr,
		from:        from,
		baseURL:     baseURL,
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
		sendMail: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	subject := "Verify your email address"
	body := fmt.Sprintf("Follow this link to verify your email:\r\n\r\n%s/verify-email?token=%s\r\n", m.baseURL, token)
	return m.send(ctx, email, subject, body)
}

func (m *SMTPMailer) SendResetEmail(ctx context.Context, email, token string) error {
	subject := "Reset your password"
	body := fmt.Sprintf("Follow this link to reset your password (valid for a limited time):\r\n\r\n%s/reset-password?token=%s\r\n", m.baseURL, token)
	return m.send(ctx, email, subject, body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body))

	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewFibonacci(m.baseBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.sendMail(m.addr, m.from, []string{to}, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

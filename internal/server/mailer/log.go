package mailer

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
)

// LogMailer writes the links to the log instead of sending anything.
// Used in development and as the default when no SMTP host is configured.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(l logging.Logger) *LogMailer {
	return &LogMailer{logger: l.With("module", "mailer")}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.logger.Info(ctx, "verification email", "to", email, "token", token)
	return nil
}

func (m *LogMailer) SendResetEmail(ctx context.Context, email, token string) error {
	m.logger.Info(ctx, "password reset email", "to", email, "token", token)
	return nil
}

// Package services contains server-side business logic. This file
// implements AccountService, the façade for registration, login and the
// verification / password-reset token lifecycles.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AuthResult bundles the sanitized account with a freshly minted session
// token.
type AuthResult struct {
	Account      *models.Account
	SessionToken string
}

// AccountService provides the account lifecycle operations:
//   - Register / Login: local credential flows
//   - ForgotPassword / ResetPassword: the reset token window
//   - VerifyEmail / ResendVerification / CheckVerificationStatus
type AccountService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	notifier        mailer.Notifier
	logger          logging.Logger
	jwtSecret       []byte
	sessionValidity time.Duration
	resetValidity   time.Duration
	strictNotifier  bool

	// now is a seam for tests that pin the clock.
	now func() time.Time
}

// NewAccountService constructs an AccountService using repositories,
// the outbound notifier and server config.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, n mailer.Notifier, l logging.Logger, cfg *config.Config) *AccountService {
	return &AccountService{
		db:              db,
		repomanager:     m,
		notifier:        n,
		logger:          l.With("module", "accounts"),
		jwtSecret:       []byte(cfg.SecretKey),
		sessionValidity: cfg.SessionValidityDuration,
		resetValidity:   cfg.ResetTokenValidityDuration,
		strictNotifier:  cfg.StrictNotifier,
		now:             time.Now,
	}
}

// Register creates a local, unverified account, sends the verification
// link and issues a session token. The e-mail pre-check is a fast path
// only; the store's unique index is the final arbiter for racing
// registrations.
func (s *AccountService) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	email = common.NormalizeEmail(email)
	repo := s.repomanager.Accounts(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error checking email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	verificationToken, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	account := &models.Account{
		ID:                     uuid.NewString(),
		Email:                  email,
		Name:                   name,
		PasswordHash:           sql.NullString{String: hash, Valid: true},
		Provider:               models.ProviderLocal,
		EmailVerified:          false,
		EmailVerificationToken: sql.NullString{String: verificationToken, Valid: true},
		Role:                   models.RoleUser,
	}

	created, err := repo.Create(ctx, account)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	if err := s.notifier.SendVerificationEmail(ctx, created.Email, verificationToken); err != nil {
		if s.strictNotifier {
			return nil, fmt.Errorf("error sending verification email: %w", err)
		}
		s.logger.Warn(ctx, "verification email failed", "email", created.Email, "error", err.Error())
	}

	token, err := auth.GenerateSessionToken(created.ID, created.Email, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &AuthResult{Account: created.Sanitized(), SessionToken: token}, nil
}

// Login verifies local credentials and issues a session token. A missing
// account, an external account and a wrong password are indistinguishable
// to the caller, and all three burn one hash comparison. Login does not
// require a verified email.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = common.NormalizeEmail(email)
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.VerifyDummy(password)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if account.Provider != models.ProviderLocal || !account.PasswordHash.Valid {
		auth.VerifyDummy(password)
		return nil, common.ErrorUnauthorized
	}

	if !auth.VerifyPassword(password, account.PasswordHash.String) {
		return nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateSessionToken(account.ID, account.Email, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &AuthResult{Account: account.Sanitized(), SessionToken: token}, nil
}

// ForgotPassword opens a reset window when the email belongs to a local
// account, and answers with the same generic message either way. It never
// fails for an unknown email.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = common.NormalizeEmail(email)
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.GenericResetMessage, nil
		}
		return "", common.ErrorInternal
	}

	// External accounts have no password to reset; keep the response
	// identical.
	if account.Provider != models.ProviderLocal {
		return common.GenericResetMessage, nil
	}

	resetToken, err := auth.NewOpaqueToken()
	if err != nil {
		return "", common.ErrorInternal
	}

	expiresAt := s.now().Add(s.resetValidity)
	if err := repo.SetResetToken(ctx, account.ID, resetToken, expiresAt); err != nil {
		return "", common.ErrorInternal
	}

	if err := s.notifier.SendResetEmail(ctx, account.Email, resetToken); err != nil {
		s.logger.Warn(ctx, "reset email failed", "email", account.Email, "error", err.Error())
	}

	return common.GenericResetMessage, nil
}

// ResetPassword consumes a live reset token and replaces the stored hash.
// The store clears the token pair in the same conditional update, so a
// token can be consumed at most once; an expired or unknown token yields
// ErrorNotFound.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return "", common.ErrorInternal
	}

	repo := s.repomanager.Accounts(s.db)
	if _, err := repo.ConsumeResetToken(ctx, token, hash, s.now()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", common.ErrorInternal
	}

	return "password has been reset", nil
}

// VerifyEmail consumes a verification token, marking the holder verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (string, error) {
	repo := s.repomanager.Accounts(s.db)

	if _, err := repo.ConsumeVerificationToken(ctx, token); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", common.ErrorInternal
	}

	return "email verified", nil
}

// ResendVerification issues a fresh verification token, superseding any
// previous one, and sends it. Unknown or already verified emails are a
// silent no-op behind the same generic message.
func (s *AccountService) ResendVerification(ctx context.Context, email string) (string, error) {
	email = common.NormalizeEmail(email)
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.GenericVerificationMessage, nil
		}
		return "", common.ErrorInternal
	}

	if account.EmailVerified || account.Provider != models.ProviderLocal {
		return common.GenericVerificationMessage, nil
	}

	verificationToken, err := auth.NewOpaqueToken()
	if err != nil {
		return "", common.ErrorInternal
	}

	if err := repo.SetVerificationToken(ctx, account.ID, verificationToken); err != nil {
		// The account may have been verified or purged since the read;
		// either way there is nothing to send.
		if errors.Is(err, common.ErrorNotFound) {
			return common.GenericVerificationMessage, nil
		}
		return "", common.ErrorInternal
	}

	if err := s.notifier.SendVerificationEmail(ctx, account.Email, verificationToken); err != nil {
		s.logger.Warn(ctx, "verification email failed", "email", account.Email, "error", err.Error())
	}

	return common.GenericVerificationMessage, nil
}

// CheckVerificationStatus reports whether the email is verified. Unknown
// emails read as unverified with the same message shape.
func (s *AccountService) CheckVerificationStatus(ctx context.Context, email string) (bool, string, error) {
	email = common.NormalizeEmail(email)
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, "verification pending", nil
		}
		return false, "", common.ErrorInternal
	}

	if account.EmailVerified {
		return true, "email verified", nil
	}
	return false, "verification pending", nil
}

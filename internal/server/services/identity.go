package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ExternalIdentity is the normalized payload of a third-party login
// callback. It contains facts only; decisions happen in the service.
type ExternalIdentity struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// IdentityService resolves third-party login callbacks to local accounts.
type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *IdentityService {
	return &IdentityService{db: db, repomanager: m, logger: l.With("module", "identity")}
}

// ResolveExternalLogin maps a callback to an account:
//
//  1. A known external ID returns the existing account unchanged
//     (idempotent re-login).
//  2. An email already used by any other account is a hard conflict —
//     identities are never merged or silently attached.
//  3. Otherwise a new account is created, verified (we trust the third
//     party's own verification) with the user role.
//
// This is the only path that sets emailVerified without consuming a
// verification token.
func (s *IdentityService) ResolveExternalLogin(ctx context.Context, identity ExternalIdentity) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)

	existing, err := repo.GetByExternalID(ctx, identity.ExternalID)
	if err == nil {
		return existing.Sanitized(), nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	email := common.NormalizeEmail(identity.Email)
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email is used by another account", common.ErrorConflict)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	account := &models.Account{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          identity.Name,
		Provider:      models.ProviderExternal,
		ExternalID:    sql.NullString{String: identity.ExternalID, Valid: true},
		EmailVerified: true,
		Role:          models.RoleUser,
	}
	if identity.AvatarURL != "" {
		account.AvatarURL = sql.NullString{String: identity.AvatarURL, Valid: true}
	}

	created, err := repo.Create(ctx, account)
	if err != nil {
		// A racing registration for the same email loses here too.
		if errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("%w: email is used by another account", common.ErrorConflict)
		}
		return nil, fmt.Errorf("error creating external account: %w", err)
	}

	s.logger.Info(ctx, "external account created", "account_id", created.ID)
	return created.Sanitized(), nil
}

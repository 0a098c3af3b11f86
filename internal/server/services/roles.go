package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// RoleService enforces the role hierarchy and the single-super-admin
// invariant. All mutating operations require the requester to hold
// super_admin; listings require admin or above.
type RoleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewRoleService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *RoleService {
	return &RoleService{db: db, repomanager: m, logger: l.With("module", "roles")}
}

func (s *RoleService) requireRole(ctx context.Context, requesterID string, minimum models.Role) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)

	requester, err := repo.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorForbidden
		}
		return nil, common.ErrorInternal
	}
	if !requester.Role.AtLeast(minimum) {
		return nil, common.ErrorForbidden
	}
	return requester, nil
}

// PromoteToAdmin raises a plain user to admin. Only the super admin may
// promote; promoting an account that already holds admin or above is a
// role-transition error.
func (s *RoleService) PromoteToAdmin(ctx context.Context, targetID, requesterID string) (*models.Account, error) {
	if _, err := s.requireRole(ctx, requesterID, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	target, err := repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Role.AtLeast(models.RoleAdmin) {
		return nil, fmt.Errorf("%w: account is already %s", common.ErrorRoleTransition, target.Role)
	}

	updated, err := repo.UpdateRole(ctx, targetID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "promoted to admin", "account_id", targetID, "requester_id", requesterID)
	return updated.Sanitized(), nil
}

// RevokeAdmin demotes an admin back to user. The super admin cannot be
// demoted through this path.
func (s *RoleService) RevokeAdmin(ctx context.Context, targetID, requesterID string) (*models.Account, error) {
	if _, err := s.requireRole(ctx, requesterID, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	target, err := repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Role == models.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: cannot demote the super admin", common.ErrorRoleTransition)
	}
	if target.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: account is not an admin", common.ErrorRoleTransition)
	}

	updated, err := repo.UpdateRole(ctx, targetID, models.RoleUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "revoked admin", "account_id", targetID, "requester_id", requesterID)
	return updated.Sanitized(), nil
}

// PromoteToSuperAdmin transfers the title from the requester to the
// target. The whole transfer runs in one transaction: the invariant is
// re-checked immediately before the write, the requester steps down to
// admin, the target steps up. Two racing transfers cannot both commit:
// the store's partial unique index rejects the loser, which surfaces as
// ErrorSuperAdminExists.
func (s *RoleService) PromoteToSuperAdmin(ctx context.Context, targetID, requesterID string) (*models.Account, error) {
	if _, err := s.requireRole(ctx, requesterID, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	if requesterID == targetID {
		return nil, fmt.Errorf("%w: account already holds super_admin", common.ErrorRoleTransition)
	}

	var updated *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Accounts(tx)

		// Re-verify immediately before the write: the requester must
		// still hold the title, and nobody besides the requester may.
		requester, err := repoTx.GetByID(ctx, requesterID)
		if err != nil {
			return err
		}
		if requester.Role != models.RoleSuperAdmin {
			return common.ErrorSuperAdminExists
		}

		others, err := repoTx.CountByRoleExcluding(ctx, models.RoleSuperAdmin, targetID)
		if err != nil {
			return common.ErrorInternal
		}
		if others > 1 {
			return common.ErrorSuperAdminExists
		}

		target, err := repoTx.GetByID(ctx, targetID)
		if err != nil {
			return err
		}

		// The current holder steps down first so the partial unique
		// index admits the new holder. A racing transfer that commits
		// between our check and this write is rejected by the index
		// and surfaces as ErrorSuperAdminExists.
		if _, err := repoTx.UpdateRole(ctx, requester.ID, models.RoleAdmin); err != nil {
			return err
		}

		updated, err = repoTx.UpdateRole(ctx, target.ID, models.RoleSuperAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "super admin transferred", "account_id", targetID, "requester_id", requesterID)
	return updated.Sanitized(), nil
}

// ListAccounts returns every account, sans secrets. Admin and above only.
func (s *RoleService) ListAccounts(ctx context.Context, requesterID string) ([]*models.Account, error) {
	if _, err := s.requireRole(ctx, requesterID, models.RoleAdmin); err != nil {
		return nil, err
	}

	list, err := s.repomanager.Accounts(s.db).List(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}

	result := make([]*models.Account, 0, len(list))
	for _, a := range list {
		result = append(result, a.Sanitized())
	}
	return result, nil
}

// FindByEmailForAdmin looks one account up by email, sans secrets. Admin
// and above only.
func (s *RoleService) FindByEmailForAdmin(ctx context.Context, email, requesterID string) (*models.Account, error) {
	if _, err := s.requireRole(ctx, requesterID, models.RoleAdmin); err != nil {
		return nil, err
	}

	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

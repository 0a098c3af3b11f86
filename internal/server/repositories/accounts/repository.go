package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// Repository is the persistence boundary for accounts. Implementations
// must honor the atomicity notes on each method: token consumption and
// role promotion rely on the store, not the caller, to arbitrate races.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Account, error)

	// SetVerificationToken replaces the verification token, superseding
	// any previously issued one.
	SetVerificationToken(ctx context.Context, id, token string) error

	// ConsumeVerificationToken marks the holder of token verified and
	// clears the token in one conditional update, so a token cannot be
	// consumed twice.
	ConsumeVerificationToken(ctx context.Context, token string) (*models.Account, error)

	// SetResetToken opens a reset window: token and expiry are written
	// together.
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error

	// ConsumeResetToken stores newHash and clears the token pair in one
	// conditional update, matching only a token that is still live
	// strictly after now.
	ConsumeResetToken(ctx context.Context, token, newHash string, now time.Time) (*models.Account, error)

	// UpdateRole writes the role. Promotions to super_admin are arbitrated
	// by the store's partial unique index; a losing racer gets
	// common.ErrorSuperAdminExists.
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.Account, error)
	CountByRoleExcluding(ctx context.Context, role models.Role, excludeID string) (int64, error)

	List(ctx context.Context) ([]*models.Account, error)

	// DeleteUnverifiedBefore removes local, unverified accounts created
	// strictly before cutoff and returns their emails for audit.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// ClearExpiredResetTokens clears token pairs whose expiry is at or
	// before now. Accounts themselves are untouched.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	// Stats returns total and verified account counts.
	Stats(ctx context.Context) (total int64, verified int64, err error)
}

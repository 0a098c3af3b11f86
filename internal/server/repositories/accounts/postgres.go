package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names from the accounts migration. Unique violations are
// classified into domain errors by constraint.
const (
	emailConstraint      = "accounts_email_uq"
	externalIDConstraint = "accounts_external_id_uq"
	superAdminConstraint = "accounts_one_super_admin_uq"
)

const accountColumns = `id, email, name, password_hash, provider, external_id, avatar_url,
	email_verified, email_verification_token, reset_password_token, reset_password_expires_at,
	role, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Provider, &a.ExternalID, &a.AvatarURL,
		&a.EmailVerified, &a.EmailVerificationToken, &a.ResetPasswordToken, &a.ResetPasswordExpiresAt,
		&a.Role, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// classifyUnique maps a Postgres unique violation (SQLSTATE 23505) to the
// matching domain error, or returns false when err is something else.
func classifyUnique(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil, false
	}
	switch pgErr.ConstraintName {
	case superAdminConstraint:
		return common.ErrorSuperAdminExists, true
	case emailConstraint, externalIDConstraint:
		return common.ErrorConflict, true
	default:
		return common.ErrorConflict, true
	}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `INSERT INTO accounts (id, email, name, password_hash, provider, external_id, avatar_url,
			email_verified, email_verification_token, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING ` + accountColumns

	row := r.db.QueryRowContext(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash, account.Provider,
		account.ExternalID, account.AvatarURL, account.EmailVerified,
		account.EmailVerificationToken, account.Role)

	created, err := scanAccount(row)
	if err != nil {
		if derr, ok := classifyUnique(err); ok {
			return nil, derr
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_id = $1`
	return r.getOne(ctx, query, externalID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) SetVerificationToken(ctx context.Context, id, token string) error {
	query := `UPDATE accounts SET email_verification_token = $2, updated_at = now()
		 WHERE id = $1 AND email_verified = FALSE`

	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	query := `UPDATE accounts
		 SET email_verified = TRUE, email_verification_token = NULL, updated_at = now()
		 WHERE email_verification_token = $1
		 RETURNING ` + accountColumns

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	query := `UPDATE accounts
		 SET reset_password_token = $2, reset_password_expires_at = $3, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token, newHash string, now time.Time) (*models.Account, error) {
	// The expiry predicate is strict: a token expiring exactly at now is
	// already inert.
	query := `UPDATE accounts
		 SET password_hash = $2, reset_password_token = NULL, reset_password_expires_at = NULL, updated_at = now()
		 WHERE reset_password_token = $1 AND reset_password_expires_at > $3
		 RETURNING ` + accountColumns

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, token, newHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.Account, error) {
	query := `UPDATE accounts SET role = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id, role))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if derr, ok := classifyUnique(err); ok {
			return nil, derr
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) CountByRoleExcluding(ctx context.Context, role models.Role, excludeID string) (int64, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE role = $1 AND id <> $2`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, role, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	// Strict less-than: an account created exactly at the cutoff is kept.
	query := `DELETE FROM accounts
		 WHERE provider = 'local' AND email_verified = FALSE AND created_at < $1
		 RETURNING email`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return emails, nil
}

func (r *PostgresRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE accounts
		 SET reset_password_token = NULL, reset_password_expires_at = NULL, updated_at = now()
		 WHERE reset_password_token IS NOT NULL AND reset_password_expires_at <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (int64, int64, error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE email_verified) FROM accounts`

	var total, verified int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &verified); err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return total, verified, nil
}

package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/accounts"
	"log/slog"
)

// fakeAccountsRepo is an in-memory accounts.Repository that mimics the
// store-level guarantees the services lean on: unique email (case
// insensitive), unique external ID, the single-super-admin index, and
// conditional token consumption.
type fakeAccountsRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Account

	// error injection
	updateRoleErr error
	deleteErr     error
	statsErr      error
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{byID: map[string]*models.Account{}}
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (f *fakeAccountsRepo) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, account.Email) {
			return nil, common.ErrorConflict
		}
		if account.ExternalID.Valid && existing.ExternalID.Valid && existing.ExternalID.String == account.ExternalID.String {
			return nil, common.ErrorConflict
		}
		if account.Role == models.RoleSuperAdmin && existing.Role == models.RoleSuperAdmin {
			return nil, common.ErrorSuperAdminExists
		}
	}

	c := copyAccount(account)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	f.byID[c.ID] = c
	return copyAccount(c), nil
}

func (f *fakeAccountsRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[id]; ok {
		return copyAccount(a), nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if strings.EqualFold(a.Email, email) {
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.ExternalID.Valid && a.ExternalID.String == externalID {
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) SetVerificationToken(ctx context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.EmailVerified {
		return common.ErrorNotFound
	}
	a.EmailVerificationToken = sql.NullString{String: token, Valid: true}
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAccountsRepo) ConsumeVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.EmailVerificationToken.Valid && a.EmailVerificationToken.String == token {
			a.EmailVerified = true
			a.EmailVerificationToken = sql.NullString{}
			a.UpdatedAt = time.Now()
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.ResetPasswordToken = sql.NullString{String: token, Valid: true}
	a.ResetPasswordExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAccountsRepo) ConsumeResetToken(ctx context.Context, token, newHash string, now time.Time) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.ResetPasswordToken.Valid && a.ResetPasswordToken.String == token &&
			a.ResetPasswordExpiresAt.Valid && a.ResetPasswordExpiresAt.Time.After(now) {
			a.PasswordHash = sql.NullString{String: newHash, Valid: true}
			a.ResetPasswordToken = sql.NullString{}
			a.ResetPasswordExpiresAt = sql.NullTime{}
			a.UpdatedAt = time.Now()
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) UpdateRole(ctx context.Context, id string, role models.Role) (*models.Account, error) {
	if f.updateRoleErr != nil {
		return nil, f.updateRoleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if role == models.RoleSuperAdmin {
		for _, other := range f.byID {
			if other.ID != id && other.Role == models.RoleSuperAdmin {
				return nil, common.ErrorSuperAdminExists
			}
		}
	}
	a.Role = role
	a.UpdatedAt = time.Now()
	return copyAccount(a), nil
}

func (f *fakeAccountsRepo) CountByRoleExcluding(ctx context.Context, role models.Role, excludeID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.byID {
		if a.Role == role && a.ID != excludeID {
			n++
		}
	}
	return n, nil
}

func (f *fakeAccountsRepo) List(ctx context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Account
	for _, a := range f.byID {
		result = append(result, copyAccount(a))
	}
	return result, nil
}

func (f *fakeAccountsRepo) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var emails []string
	for id, a := range f.byID {
		if a.Provider == models.ProviderLocal && !a.EmailVerified && a.CreatedAt.Before(cutoff) {
			emails = append(emails, a.Email)
			delete(f.byID, id)
		}
	}
	return emails, nil
}

func (f *fakeAccountsRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.byID {
		if a.ResetPasswordToken.Valid && a.ResetPasswordExpiresAt.Valid && !a.ResetPasswordExpiresAt.Time.After(now) {
			a.ResetPasswordToken = sql.NullString{}
			a.ResetPasswordExpiresAt = sql.NullTime{}
			n++
		}
	}
	return n, nil
}

func (f *fakeAccountsRepo) Stats(ctx context.Context) (int64, int64, error) {
	if f.statsErr != nil {
		return 0, 0, f.statsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, verified int64
	for _, a := range f.byID {
		total++
		if a.EmailVerified {
			verified++
		}
	}
	return total, verified, nil
}

// get is a test helper to inspect stored state directly.
func (f *fakeAccountsRepo) get(t *testing.T, id string) *models.Account {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		t.Fatalf("account %q not in fake store", id)
	}
	return copyAccount(a)
}

// fakeRepoManager hands the same fake repo back regardless of the DBTX
// it is bound to, mirroring how the real manager vends repositories for
// both connections and transactions.
type fakeRepoManager struct {
	repo accounts.Repository
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository { return m.repo }

// fakeNotifier records sends and optionally fails them.
type fakeNotifier struct {
	mu            sync.Mutex
	verifications map[string]string // email -> last token
	resets        map[string]string
	err           error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{verifications: map[string]string{}, resets: map[string]string{}}
}

func (n *fakeNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications[email] = token
	return nil
}

func (n *fakeNotifier) SendResetEmail(ctx context.Context, email, token string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[email] = token
	return nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

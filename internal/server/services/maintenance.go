package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// MaintenanceService implements the periodic jobs: purging stale
// unverified accounts, clearing expired reset tokens and emitting status
// telemetry. Each job is idempotent and guarded by its query predicate,
// so overlapping runs are harmless. The Run* wrappers never propagate an
// error; a failed run waits for the next tick.
type MaintenanceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     *metrics.Metrics
	retention   time.Duration

	// now is a seam for tests that pin the clock.
	now func() time.Time
}

func NewMaintenanceService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, mt *metrics.Metrics, cfg *config.Config) *MaintenanceService {
	return &MaintenanceService{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "maintenance"),
		metrics:     mt,
		retention:   cfg.UnverifiedRetention,
		now:         time.Now,
	}
}

// PurgeUnverified removes local unverified accounts older than the
// retention window and returns the count plus the removed emails. An
// account created exactly at the boundary is retained. This is the
// synchronous variant used for manual/operational triggering.
func (s *MaintenanceService) PurgeUnverified(ctx context.Context) (int, []string, error) {
	cutoff := s.now().Add(-s.retention)

	emails, err := s.repomanager.Accounts(s.db).DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return 0, nil, err
	}
	return len(emails), emails, nil
}

// ClearExpiredResetTokens clears every reset token pair whose expiry has
// passed. Accounts are untouched.
func (s *MaintenanceService) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.repomanager.Accounts(s.db).ClearExpiredResetTokens(ctx, s.now())
}

// ReportStatus counts total/verified/unverified accounts and records the
// observation. No data is mutated.
func (s *MaintenanceService) ReportStatus(ctx context.Context) (total, verified int64, err error) {
	total, verified, err = s.repomanager.Accounts(s.db).Stats(ctx)
	if err != nil {
		return 0, 0, err
	}
	if s.metrics != nil {
		s.metrics.SetAccountCounts(total, verified)
	}
	return total, verified, nil
}

// RunPurgeJob is the scheduled variant of PurgeUnverified: results are
// logged, errors swallowed.
func (s *MaintenanceService) RunPurgeJob(ctx context.Context) {
	count, emails, err := s.PurgeUnverified(ctx)
	if err != nil {
		s.logger.Error(ctx, "unverified purge failed", "error", err.Error())
		return
	}
	if count == 0 {
		s.logger.Debug(ctx, "unverified purge: nothing to remove")
		return
	}
	if s.metrics != nil {
		s.metrics.PurgedAccounts.Add(float64(count))
	}
	s.logger.Info(ctx, "unverified purge finished", "removed", count, "emails", emails)
}

// RunResetSweepJob is the scheduled wrapper of ClearExpiredResetTokens.
func (s *MaintenanceService) RunResetSweepJob(ctx context.Context) {
	n, err := s.ClearExpiredResetTokens(ctx)
	if err != nil {
		s.logger.Error(ctx, "reset token sweep failed", "error", err.Error())
		return
	}
	if n == 0 {
		s.logger.Debug(ctx, "reset token sweep: nothing to clear")
		return
	}
	if s.metrics != nil {
		s.metrics.ClearedResetTokens.Add(float64(n))
	}
	s.logger.Info(ctx, "reset token sweep finished", "cleared", n)
}

// RunTelemetryJob is the scheduled wrapper of ReportStatus.
func (s *MaintenanceService) RunTelemetryJob(ctx context.Context) {
	total, verified, err := s.ReportStatus(ctx)
	if err != nil {
		s.logger.Error(ctx, "status telemetry failed", "error", err.Error())
		return
	}
	s.logger.Info(ctx, "status telemetry", "total", total, "verified", verified, "unverified", total-verified)
}

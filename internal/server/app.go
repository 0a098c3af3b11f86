// Package server initializes and runs the identity core server.
// It opens the database, runs migrations, wires the services, starts the
// maintenance schedulers and the metrics endpoint, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics

	AccountService     *services.AccountService
	RoleService        *services.RoleService
	IdentityService    *services.IdentityService
	MaintenanceService *services.MaintenanceService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var notifier mailer.Notifier
	if cfg.SMTPAddr != "" {
		notifier = mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.PublicBaseURL)
	} else {
		logger.Warn(ctx, "smtp address not set, outbound mail goes to the log")
		notifier = mailer.NewLogMailer(logger)
	}

	m := metrics.New()

	return &App{
		config:             cfg,
		logger:             logger,
		db:                 db,
		metrics:            m,
		AccountService:     services.NewAccountService(db, rm, notifier, logger, cfg),
		RoleService:        services.NewRoleService(db, rm, logger),
		IdentityService:    services.NewIdentityService(db, rm, logger),
		MaintenanceService: services.NewMaintenanceService(db, rm, logger, m, cfg),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runPeriodically runs job on the given cadence until ctx is cancelled.
// The job itself never returns an error; failures are logged inside.
func (app *App) runPeriodically(ctx context.Context, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "metrics server shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "metrics endpoint listening", "addr", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	// Prime the gauges before the first telemetry tick.
	app.MaintenanceService.RunTelemetryJob(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runPeriodically(ctx, app.config.PurgeInterval, app.MaintenanceService.RunPurgeJob)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runPeriodically(ctx, app.config.ResetSweepInterval, app.MaintenanceService.RunResetSweepJob)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runPeriodically(ctx, app.config.TelemetryInterval, app.MaintenanceService.RunTelemetryJob)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
	app.logger.Info(ctx, "app stopped")
}

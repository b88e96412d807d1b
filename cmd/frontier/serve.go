package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/analysis"
	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/history"
	"github.com/aristath/frontier/internal/optimization"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/aristath/frontier/internal/server"
	"github.com/aristath/frontier/internal/services"
	"github.com/aristath/frontier/internal/storage"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled sync, compute, and backup jobs",
		RunE:  runServe,
	}
}

// runServe boots the full service and blocks until SIGINT or SIGTERM:
// database, event bus, run pipeline, cron jobs, HTTP server. Shutdown
// stops the scheduler first so no job starts against a closing server.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	log.Info().Str("version", version).Msg("Starting frontier")

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	bus := events.NewBus(log)

	// Run pipeline: store -> statistics -> orchestrator -> run service.
	store := history.NewStore(db.Conn(), log)
	cache := storage.NewCache(db.Conn())
	syncer := history.NewSyncService(yahoo.NewClient(log), store, cache, log)
	statistics := history.NewStatisticsService(store, cache, cfg.CacheTTL(), log)
	frontier := optimization.NewFrontierService(statistics, nil, log)
	runner := services.NewRunService(cfg, frontier, bus, log)
	diagnostics := analysis.NewService(store, cfg.TradingDays, log)

	sched := scheduler.New(log)

	syncJob := scheduler.NewSyncJob(scheduler.SyncJobConfig{
		Log:    log,
		Cfg:    cfg,
		Syncer: syncer,
		Purger: cache,
		Bus:    bus,
	})
	if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
		return fmt.Errorf("failed to register sync job: %w", err)
	}

	if err := sched.AddJob(cfg.ComputeSchedule, scheduler.NewComputeJob(runner, log)); err != nil {
		return fmt.Errorf("failed to register compute job: %w", err)
	}

	maintenance := reliability.NewMaintenanceService(db, cfg.DataDir, log)
	if err := sched.AddJob(cfg.MaintenanceSchedule, scheduler.NewMaintenanceJob(maintenance, log)); err != nil {
		return fmt.Errorf("failed to register maintenance job: %w", err)
	}

	// The backup job only exists when an R2 target is configured.
	if cfg.BackupEnabled() {
		r2, err := reliability.NewR2Client(cmd.Context(), reliability.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2Bucket,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		backup := reliability.NewBackupService(db, r2, cfg.DataDir, cfg.BackupRetention, version, log)
		if err := sched.AddJob(cfg.BackupSchedule, scheduler.NewBackupJob(backup, bus, log)); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
	} else {
		log.Info().Msg("Backup target not configured, backup job disabled")
	}

	srv := server.New(server.Config{
		Log:         log,
		Config:      cfg,
		DB:          db,
		Runner:      runner,
		Diagnostics: diagnostics,
		Bus:         bus,
		Jobs:        sched,
		Version:     version,
	})

	// Start server in goroutine so the scheduler and signal handling run
	// on the main goroutine.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	sched.Start()

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Int("symbols", len(cfg.Symbols)).
		Msg("Frontier service started")

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the scheduler first; Stop drains jobs already running.
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}

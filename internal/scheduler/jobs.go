package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/history"
	"github.com/aristath/frontier/internal/optimization"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/services"
)

// PriceSyncer pulls daily price history for a set of symbols.
// Used by jobs to enable testing with mocks.
type PriceSyncer interface {
	Sync(ctx context.Context, symbols []string, start, end time.Time) (*history.SyncSummary, error)
}

// CachePurger removes expired cache entries.
// Used by jobs to enable testing with mocks.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// FrontierRunner executes a full frontier run.
// Used by jobs to enable testing with mocks.
type FrontierRunner interface {
	Run(ctx context.Context, req *services.RunRequest) (*optimization.FrontierResult, error)
}

// BackupRunner uploads a backup archive and rotates old ones.
// Used by jobs to enable testing with mocks.
type BackupRunner interface {
	Backup(ctx context.Context) (*reliability.BackupResult, error)
	RotateOldBackups(ctx context.Context) error
}

// DatabaseMaintainer runs one database maintenance pass.
// Used by jobs to enable testing with mocks.
type DatabaseMaintainer interface {
	Maintain(ctx context.Context) (*reliability.MaintenanceResult, error)
}

// SyncJob pulls daily price history for the configured symbols from the
// configured start date through today, then purges expired cache
// entries. The database accumulates history; run windows are selected
// at query time.
type SyncJob struct {
	log    zerolog.Logger
	cfg    *config.Config
	syncer PriceSyncer
	purger CachePurger
	bus    *events.Bus
}

// SyncJobConfig holds the dependencies of a SyncJob.
type SyncJobConfig struct {
	Log    zerolog.Logger
	Cfg    *config.Config
	Syncer PriceSyncer
	Purger CachePurger
	Bus    *events.Bus
}

// NewSyncJob creates a new price sync job.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	return &SyncJob{
		log:    cfg.Log.With().Str("job", "price_sync").Logger(),
		cfg:    cfg.Cfg,
		syncer: cfg.Syncer,
		purger: cfg.Purger,
		bus:    cfg.Bus,
	}
}

// Name returns the job name
func (j *SyncJob) Name() string {
	return "price_sync"
}

// Run executes the price sync
func (j *SyncJob) Run() error {
	ctx := context.Background()

	start, _, err := j.cfg.DateRange()
	if err != nil {
		return fmt.Errorf("invalid configured date range: %w", err)
	}
	end := time.Now().UTC()

	if j.bus != nil {
		j.bus.Emit("sync", &events.SyncStartedData{Symbols: j.cfg.Symbols})
	}

	summary, err := j.syncer.Sync(ctx, j.cfg.Symbols, start, end)
	if err != nil {
		return err
	}

	bars := 0
	for _, n := range summary.Synced {
		bars += n
	}
	if j.bus != nil {
		j.bus.Emit("sync", &events.SyncCompletedData{
			Symbols: len(summary.Synced),
			Bars:    bars,
			Failed:  summary.Failed,
		})
	}

	if j.purger != nil {
		if purged, err := j.purger.PurgeExpired(ctx); err != nil {
			j.log.Warn().Err(err).Msg("Cache purge failed")
		} else if purged > 0 {
			j.log.Debug().Int64("purged", purged).Msg("Expired cache entries purged")
		}
	}

	return nil
}

// ComputeJob runs the scheduled frontier computation. A run already in
// progress is skipped, not failed.
type ComputeJob struct {
	log    zerolog.Logger
	runner FrontierRunner
}

// NewComputeJob creates a new frontier compute job.
func NewComputeJob(runner FrontierRunner, log zerolog.Logger) *ComputeJob {
	return &ComputeJob{
		log:    log.With().Str("job", "frontier_compute").Logger(),
		runner: runner,
	}
}

// Name returns the job name
func (j *ComputeJob) Name() string {
	return "frontier_compute"
}

// Run executes the frontier computation
func (j *ComputeJob) Run() error {
	result, err := j.runner.Run(context.Background(), nil)
	if errors.Is(err, services.ErrRunInProgress) {
		j.log.Warn().Msg("Frontier run already in progress, skipping scheduled run")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("points", len(result.Frontier)).
		Msg("Scheduled frontier run complete")

	return nil
}

// BackupJob uploads a backup archive and rotates old backups.
type BackupJob struct {
	log    zerolog.Logger
	backup BackupRunner
	bus    *events.Bus
}

// NewBackupJob creates a new backup job.
func NewBackupJob(backup BackupRunner, bus *events.Bus, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		log:    log.With().Str("job", "remote_backup").Logger(),
		backup: backup,
		bus:    bus,
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "remote_backup"
}

// Run executes the backup and rotation
func (j *BackupJob) Run() error {
	ctx := context.Background()

	result, err := j.backup.Backup(ctx)
	if err != nil {
		return err
	}

	if j.bus != nil {
		j.bus.Emit("backup", &events.BackupCompletedData{
			Key:       result.Key,
			SizeBytes: result.SizeBytes,
			Duration:  result.Duration.Seconds(),
		})
	}

	if err := j.backup.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

// MaintenanceJob runs the weekly database maintenance pass.
type MaintenanceJob struct {
	log        zerolog.Logger
	maintainer DatabaseMaintainer
}

// NewMaintenanceJob creates a new database maintenance job.
func NewMaintenanceJob(maintainer DatabaseMaintainer, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		log:        log.With().Str("job", "db_maintenance").Logger(),
		maintainer: maintainer,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	result, err := j.maintainer.Maintain(context.Background())
	if err != nil {
		return err
	}

	j.log.Info().
		Int64("size_bytes", result.SizeBytes).
		Int64("reclaimed_bytes", result.ReclaimedBytes).
		Msg("Scheduled maintenance complete")

	return nil
}

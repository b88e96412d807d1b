package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/frontier/internal/database"
)

const (
	// diskCriticalBytes is the free-space floor below which maintenance
	// fails so the job surfaces an error before writes start failing.
	diskCriticalBytes = 512 << 20

	diskLowBytes = 5 << 30
)

// MaintenanceService keeps the history database healthy: integrity
// check, WAL truncation, vacuum, and a disk space check on the data
// directory.
type MaintenanceService struct {
	db      *database.DB
	dataDir string
	log     zerolog.Logger
}

// MaintenanceResult summarizes one maintenance pass.
type MaintenanceResult struct {
	SizeBytes      int64         `json:"size_bytes"`
	ReclaimedBytes int64         `json:"reclaimed_bytes"`
	DiskFreeBytes  uint64        `json:"disk_free_bytes"`
	Duration       time.Duration `json:"-"`
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		db:      db,
		dataDir: dataDir,
		log:     log.With().Str("service", "maintenance").Logger(),
	}
}

// Maintain runs one full maintenance pass. A failed integrity check or
// critically low disk space is an error; checkpoint and vacuum failures
// are logged and skipped since the next pass retries them.
func (s *MaintenanceService) Maintain(ctx context.Context) (*MaintenanceResult, error) {
	s.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	if err := s.db.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("integrity check failed: %w", err)
	}

	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		s.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	var sizeBefore int64
	if stats, err := s.db.GetStats(); err == nil {
		sizeBefore = stats.SizeBytes
	}

	if err := s.db.Vacuum(); err != nil {
		s.log.Warn().Err(err).Msg("Vacuum failed")
	}

	result := &MaintenanceResult{}
	if stats, err := s.db.GetStats(); err == nil {
		result.SizeBytes = stats.SizeBytes
		if reclaimed := sizeBefore - stats.SizeBytes; reclaimed > 0 {
			result.ReclaimedBytes = reclaimed
		}
	}

	usage, err := disk.UsageWithContext(ctx, s.dataDir)
	if err != nil {
		s.log.Warn().Err(err).Msg("Disk usage check failed")
	} else {
		result.DiskFreeBytes = usage.Free
		if usage.Free < diskCriticalBytes {
			return nil, fmt.Errorf("critically low disk space: %d MB free", usage.Free>>20)
		}
		if usage.Free < diskLowBytes {
			s.log.Warn().
				Uint64("free_mb", usage.Free>>20).
				Float64("used_percent", usage.UsedPercent).
				Msg("Disk space running low")
		}
	}

	result.Duration = time.Since(startTime)
	s.log.Info().
		Dur("duration", result.Duration).
		Int64("size_bytes", result.SizeBytes).
		Int64("reclaimed_bytes", result.ReclaimedBytes).
		Msg("Database maintenance completed")

	return result, nil
}

package server

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/charts"
	"github.com/aristath/frontier/internal/scheduler"
)

// SystemStatusResponse reports process, host, and storage health.
type SystemStatusResponse struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	CPUPercent    float64      `json:"cpu_percent"`
	MemoryPercent float64      `json:"memory_percent"`
	Symbols       int          `json:"symbols"`
	DataDirMB     float64      `json:"data_dir_mb"`
	Database      DatabaseInfo `json:"database"`
	LastRun       *LastRunInfo `json:"last_run,omitempty"`
}

// DatabaseInfo summarizes the history database on disk.
type DatabaseInfo struct {
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
}

// LastRunInfo summarizes the most recent completed frontier run.
type LastRunInfo struct {
	RunID      string    `json:"run_id"`
	ComputedAt time.Time `json:"computed_at"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	Points     int       `json:"points"`
}

// JobsStatusResponse lists the registered background jobs.
type JobsStatusResponse struct {
	TotalJobs int                 `json:"total_jobs"`
	Jobs      []scheduler.JobInfo `json:"jobs"`
}

// DatabaseStatsResponse carries page-level database statistics.
type DatabaseStatsResponse struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	PageSize      int64   `json:"page_size"`
	FreelistCount int64   `json:"freelist_count"`
	LastChecked   string  `json:"last_checked"`
}

// handleSystemStatus returns host and application status in one shot.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.getSystemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: time.Since(s.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Symbols:       len(s.cfg.Symbols),
		DataDirMB:     s.getDirSize(s.cfg.DataDir),
	}

	response.Database.Path = s.db.Path()
	if stats, err := s.db.GetStats(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to get database stats")
	} else {
		response.Database.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
		response.Database.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
	}

	// Absence of a completed run is a valid state, not an error.
	if result, err := charts.LoadLatest(s.cfg.DataDir); err == nil {
		response.LastRun = &LastRunInfo{
			RunID:      result.RunID,
			ComputedAt: result.ComputedAt,
			ElapsedMS:  result.ElapsedMS,
			Points:     len(result.Frontier),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleJobsStatus returns the registered scheduler jobs.
func (s *Server) handleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobInfo{}
	if s.jobs != nil {
		jobs = s.jobs.Jobs()
	}

	s.writeJSON(w, http.StatusOK, JobsStatusResponse{
		TotalJobs: len(jobs),
		Jobs:      jobs,
	})
}

// handleDatabaseStats returns database statistics.
func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	s.log.Debug().Msg("Getting database stats")

	stats, err := s.db.GetStats()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get database stats")
		s.writeError(w, http.StatusInternalServerError, "failed to get database stats")
		return
	}

	s.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Name:          s.db.Name(),
		Path:          s.db.Path(),
		SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
		PageCount:     stats.PageCount,
		PageSize:      stats.PageSize,
		FreelistCount: stats.FreelistCount,
		LastChecked:   time.Now().Format(time.RFC3339),
	})
}

// getSystemStats calculates CPU and RAM usage percentages. The short
// CPU sampling interval keeps the status endpoint fast.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// getDirSize calculates total size of a directory in MB.
func (s *Server) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		s.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

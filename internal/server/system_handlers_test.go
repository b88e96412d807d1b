package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/charts"
	"github.com/aristath/frontier/internal/scheduler"
)

func TestHandleSystemStatus(t *testing.T) {
	fix := newTestServer(t)

	// Until a checkpoint runs, the schema pages sit in the WAL and the
	// main database file reports zero bytes.
	require.NoError(t, fix.db.WALCheckpoint("TRUNCATE"))

	rec := fix.request(t, http.MethodGet, "/api/system/status", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "0.1.0", response.Version)
	assert.Equal(t, 2, response.Symbols)
	assert.GreaterOrEqual(t, response.CPUPercent, 0.0)
	assert.Greater(t, response.MemoryPercent, 0.0)
	assert.Greater(t, response.DataDirMB, 0.0, "data dir holds the database file")
	assert.Greater(t, response.Database.SizeMB, 0.0)
	assert.Equal(t, fix.db.Path(), response.Database.Path)
	assert.Nil(t, response.LastRun)
}

func TestHandleSystemStatusReportsLastRun(t *testing.T) {
	fix := newTestServer(t)

	_, err := charts.WriteArtifacts(fix.cfg.DataDir, sampleResult("run_status"), nil)
	require.NoError(t, err)

	rec := fix.request(t, http.MethodGet, "/api/system/status", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	require.NotNil(t, response.LastRun)
	assert.Equal(t, "run_status", response.LastRun.RunID)
	assert.Equal(t, 3, response.LastRun.Points)
	assert.Equal(t, int64(1200), response.LastRun.ElapsedMS)
}

func TestHandleJobsStatus(t *testing.T) {
	fix := newTestServer(t)
	fix.jobs.jobs = []scheduler.JobInfo{
		{Name: "price_sync", Schedule: "0 0 7 * * *"},
		{Name: "frontier_compute", Schedule: "0 30 7 * * *"},
	}

	rec := fix.request(t, http.MethodGet, "/api/system/jobs", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response JobsStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, 2, response.TotalJobs)
	require.Len(t, response.Jobs, 2)
	assert.Equal(t, "price_sync", response.Jobs[0].Name)
	assert.Equal(t, "0 30 7 * * *", response.Jobs[1].Schedule)
}

func TestHandleJobsStatusWithoutScheduler(t *testing.T) {
	fix := newTestServer(t)

	srv := New(Config{
		Log:     zerolog.Nop(),
		Config:  fix.cfg,
		DB:      fix.db,
		Version: "0.1.0",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/system/jobs", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response JobsStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Zero(t, response.TotalJobs)
	assert.Empty(t, response.Jobs)
}

func TestHandleDatabaseStats(t *testing.T) {
	fix := newTestServer(t)
	require.NoError(t, fix.db.WALCheckpoint("TRUNCATE"))

	rec := fix.request(t, http.MethodGet, "/api/system/database/stats", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "history", response.Name)
	assert.Equal(t, fix.db.Path(), response.Path)
	assert.Greater(t, response.SizeMB, 0.0)
	assert.Greater(t, response.PageCount, int64(0))
	assert.Greater(t, response.PageSize, int64(0))
	assert.NotEmpty(t, response.LastChecked)
}

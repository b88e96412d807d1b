package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/charts"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/optimization"
)

type stubProvider struct {
	stats *optimization.ReturnStatistics
	err   error
}

func (p *stubProvider) GetReturnStatistics(ctx context.Context, symbols []string, start, end time.Time) (*optimization.ReturnStatistics, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.stats, nil
}

func testStatistics(t *testing.T) *optimization.ReturnStatistics {
	t.Helper()
	stats, err := optimization.NewReturnStatistics(
		[]string{"AAA", "BBB"},
		[]float64{0.001, 0.0005},
		[][]float64{
			{1.0e-4, 2.0e-5},
			{2.0e-5, 8.0e-5},
		},
	)
	require.NoError(t, err)
	return stats
}

func newTestRunService(t *testing.T, provider optimization.StatisticsProvider) (*RunService, *events.Bus, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		Symbols:        []string{"AAA", "BBB"},
		StartDate:      "2020-01-02",
		EndDate:        "2024-01-02",
		RiskFreeRate:   0.01,
		LowerBound:     0.0,
		UpperBound:     1.0,
		FrontierPoints: 5,
		TradingDays:    252,
		Workers:        2,
		DataDir:        t.TempDir(),
	}

	frontier := optimization.NewFrontierService(provider, nil, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	return NewRunService(cfg, frontier, bus, zerolog.Nop()), bus, cfg
}

func TestRunProducesArtifactsAndEvents(t *testing.T) {
	svc, bus, cfg := newTestRunService(t, &stubProvider{stats: testStatistics(t)})

	startedEvents := make(chan *events.Event, 1)
	completedEvents := make(chan *events.Event, 1)
	bus.Subscribe(events.RunStarted, func(e *events.Event) { startedEvents <- e })
	bus.Subscribe(events.RunCompleted, func(e *events.Event) { completedEvents <- e })

	result, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Frontier, cfg.FrontierPoints)

	// Artifacts on disk
	loaded, err := charts.LoadLatest(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, loaded.RunID)

	for _, name := range []string{
		"frontier-" + result.RunID + ".json",
		"frontier-" + result.RunID + ".png",
		"frontier-latest.json",
		"frontier-latest.png",
	} {
		_, statErr := os.Stat(filepath.Join(cfg.DataDir, name))
		assert.NoError(t, statErr, "expected %s to exist", name)
	}

	// Lifecycle events carry the same run ID
	select {
	case e := <-startedEvents:
		data, ok := e.Data.(*events.RunStartedData)
		require.True(t, ok)
		assert.Equal(t, result.RunID, data.RunID)
		assert.Equal(t, []string{"AAA", "BBB"}, data.Symbols)
		assert.Equal(t, cfg.FrontierPoints, data.Points)
	default:
		t.Fatal("Expected RunStarted event")
	}

	select {
	case e := <-completedEvents:
		data, ok := e.Data.(*events.RunCompletedData)
		require.True(t, ok)
		assert.Equal(t, result.RunID, data.RunID)
		assert.Equal(t, cfg.FrontierPoints, data.FrontierPoints)
		assert.Equal(t, result.MaxSharpe.SharpeRatio, data.SharpeRatio)
	default:
		t.Fatal("Expected RunCompleted event")
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	svc, _, _ := newTestRunService(t, &stubProvider{stats: testStatistics(t)})

	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err := svc.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunAppliesOverrides(t *testing.T) {
	svc, _, _ := newTestRunService(t, &stubProvider{stats: testStatistics(t)})

	points := 3
	riskFree := 0.0
	result, err := svc.Run(context.Background(), &RunRequest{
		FrontierPoints: &points,
		RiskFreeRate:   &riskFree,
		Start:          "2021-01-04",
		End:            "2023-01-04",
	})
	require.NoError(t, err)

	assert.Len(t, result.Frontier, 3)
	assert.Equal(t, 0.0, result.Settings.RiskFreeRate)
	assert.Equal(t, "2021-01-04", result.Start)
	assert.Equal(t, "2023-01-04", result.End)
}

func TestRunRejectsInvalidOverrides(t *testing.T) {
	testCases := []struct {
		name    string
		request *RunRequest
		wantErr string
	}{
		{
			name:    "malformed start date",
			request: &RunRequest{Start: "01/02/2021"},
			wantErr: "invalid start date",
		},
		{
			name:    "end before start",
			request: &RunRequest{Start: "2023-01-04", End: "2021-01-04"},
			wantErr: "must be after start date",
		},
		{
			name: "inverted bounds",
			request: &RunRequest{
				LowerBound: floatPtr(0.5),
				UpperBound: floatPtr(0.2),
			},
			wantErr: "must exceed lower bound",
		},
		{
			name:    "zero frontier points",
			request: &RunRequest{FrontierPoints: intPtr(0)},
			wantErr: "frontier points must be positive",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestRunService(t, &stubProvider{stats: testStatistics(t)})
			_, err := svc.Run(context.Background(), tc.request)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRunEmitsFailureEvent(t *testing.T) {
	svc, bus, cfg := newTestRunService(t, &stubProvider{err: errors.New("no price history for AAA")})

	failedEvents := make(chan *events.Event, 1)
	bus.Subscribe(events.RunFailed, func(e *events.Event) { failedEvents <- e })

	_, err := svc.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price history for AAA")

	select {
	case e := <-failedEvents:
		data, ok := e.Data.(*events.RunFailedData)
		require.True(t, ok)
		assert.NotEmpty(t, data.RunID)
		assert.Contains(t, data.Error, "no price history for AAA")
	default:
		t.Fatal("Expected RunFailed event")
	}

	_, statErr := os.Stat(charts.LatestJSONPath(cfg.DataDir))
	assert.True(t, os.IsNotExist(statErr), "no artifacts on failure")
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

package optimization

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticProvider hands back fixed statistics, or a fixed failure.
type staticProvider struct {
	stats *ReturnStatistics
	err   error
}

func (p *staticProvider) GetReturnStatistics(_ context.Context, _ []string, _, _ time.Time) (*ReturnStatistics, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.stats, nil
}

func computeRequest(symbols []string, settings Settings) ComputeRequest {
	return ComputeRequest{
		Symbols:  symbols,
		Start:    time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Settings: settings,
	}
}

func TestFrontierComputeIdenticalAssets(t *testing.T) {
	// Two independent assets with identical mean and variance: by
	// symmetry the minimum-volatility portfolio splits 50/50, and every
	// feasible portfolio earns the same return.
	stats, err := NewReturnStatistics(
		[]string{"AAA", "BBB"},
		[]float64{0.001, 0.001},
		[][]float64{
			{0.0004, 0},
			{0, 0.0004},
		},
	)
	require.NoError(t, err)

	settings := zeroRateSettings()
	settings.FrontierPoints = 11

	service := NewFrontierService(&staticProvider{stats: stats}, nil, zerolog.Nop())
	result, err := service.Compute(context.Background(), computeRequest(stats.Symbols, settings))
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Frontier, 11, "curve length must equal the configured point count")
	assert.Zero(t, result.FailedPoints)
	assert.NotEmpty(t, result.RunID)

	assert.InDelta(t, 0.5, result.MinVolatility.Weights["AAA"], 0.05)
	assert.InDelta(t, 0.5, result.MinVolatility.Weights["BBB"], 0.05)

	// The solved minimum is no worse than hand-picked feasible points.
	solved := result.MinVolatility.Performance.Volatility
	for _, spot := range [][]float64{EqualWeights(2), {1, 0}, {0, 1}} {
		assert.LessOrEqual(t, solved, Evaluate(spot, stats, 252).Volatility+1e-6)
	}

	for _, point := range result.Frontier {
		assert.True(t, point.Converged)
		assert.GreaterOrEqual(t, point.Volatility, 0.0)
	}
}

func TestFrontierComputeDominantAsset(t *testing.T) {
	stats, err := NewReturnStatistics(
		[]string{"LEAD", "MID", "LAG"},
		[]float64{0.002, 0.0005, 0.0004},
		[][]float64{
			{0.0001, 0, 0},
			{0, 0.0009, 0},
			{0, 0, 0.0016},
		},
	)
	require.NoError(t, err)

	settings := zeroRateSettings()
	settings.FrontierPoints = 9

	service := NewFrontierService(&staticProvider{stats: stats}, nil, zerolog.Nop())
	result, err := service.Compute(context.Background(), computeRequest(stats.Symbols, settings))
	require.NoError(t, err)

	require.Len(t, result.Frontier, 9)
	assert.Zero(t, result.FailedPoints)

	assert.Greater(t, result.MaxSharpe.Weights["LEAD"], 0.6,
		"the dominating asset should carry the bulk of the max-Sharpe weight")
	assert.GreaterOrEqual(t, result.MaxSharpe.SharpeRatio+1e-9, result.MinVolatility.SharpeRatio,
		"max-Sharpe portfolio cannot be less risk-efficient than min-volatility at rf=0")

	// Targets span anchor returns inclusively and non-decreasingly.
	first := result.Frontier[0].TargetReturn
	last := result.Frontier[len(result.Frontier)-1].TargetReturn
	assert.InDelta(t, result.MinVolatility.Performance.Return, first, 1e-9)
	assert.InDelta(t, result.MaxSharpe.Performance.Return, last, 1e-9)
	for i := 1; i < len(result.Frontier); i++ {
		assert.GreaterOrEqual(t, result.Frontier[i].TargetReturn+1e-12, result.Frontier[i-1].TargetReturn,
			"target sequence must be monotone non-decreasing")
	}

	for _, point := range result.Frontier {
		assert.Greater(t, point.Volatility, 0.0)
	}
}

func TestFrontierComputeProviderFailure(t *testing.T) {
	service := NewFrontierService(&staticProvider{err: fmt.Errorf("no data for symbol")}, nil, zerolog.Nop())

	result, err := service.Compute(context.Background(), computeRequest([]string{"AAA"}, DefaultSettings()))
	require.Error(t, err)
	assert.Nil(t, result, "an input-data failure must abort before any solve")
	assert.Contains(t, err.Error(), "failed to get return statistics")
}

func TestFrontierComputeDimensionMismatch(t *testing.T) {
	// Mean-return length 3 against a 2×2 covariance must halt the run,
	// never silently proceed.
	malformed := &ReturnStatistics{
		Symbols:     []string{"A", "B", "C"},
		MeanReturns: []float64{0.001, 0.002, 0.003},
		Covariance:  [][]float64{{0.0004, 0}, {0, 0.0009}},
	}

	service := NewFrontierService(&staticProvider{stats: malformed}, nil, zerolog.Nop())
	result, err := service.Compute(context.Background(), computeRequest(malformed.Symbols, DefaultSettings()))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "invalid return statistics")
}

func TestFrontierComputeEmptySymbols(t *testing.T) {
	service := NewFrontierService(&staticProvider{}, nil, zerolog.Nop())

	_, err := service.Compute(context.Background(), computeRequest(nil, DefaultSettings()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no symbols")
}

func TestFrontierProgressEvents(t *testing.T) {
	stats, err := NewReturnStatistics(
		[]string{"AAA", "BBB"},
		[]float64{0.001, 0.001},
		[][]float64{
			{0.0004, 0},
			{0, 0.0004},
		},
	)
	require.NoError(t, err)

	settings := zeroRateSettings()
	settings.FrontierPoints = 5

	service := NewFrontierService(&staticProvider{stats: stats}, nil, zerolog.Nop())

	var updates []Progress
	service.OnProgress(func(p Progress) {
		updates = append(updates, p)
	})

	_, err = service.Compute(context.Background(), computeRequest(stats.Symbols, settings))
	require.NoError(t, err)

	phases := make(map[string]bool)
	sweepFinished := false
	for _, u := range updates {
		phases[u.Phase] = true
		if u.Phase == "sweep" && u.Current == u.Total && u.Total == 5 {
			sweepFinished = true
		}
	}

	for _, phase := range []string{"statistics", "max_sharpe", "min_volatility", "sweep", "complete"} {
		assert.True(t, phases[phase], "missing progress phase %q", phase)
	}
	assert.True(t, sweepFinished, "sweep progress should reach its total")
}

func TestTargetReturns(t *testing.T) {
	single := targetReturns(0.2, 0.4, 1)
	assert.Equal(t, []float64{0.2}, single)

	increasing := targetReturns(0.1, 0.5, 5)
	require.Len(t, increasing, 5)
	assert.InDelta(t, 0.1, increasing[0], 1e-12)
	assert.InDelta(t, 0.5, increasing[4], 1e-12)
	for i := 1; i < len(increasing); i++ {
		assert.Greater(t, increasing[i], increasing[i-1])
	}

	// A reversed range sweeps as-is, without sorting or rejection.
	decreasing := targetReturns(0.5, 0.3, 5)
	require.Len(t, decreasing, 5)
	assert.InDelta(t, 0.5, decreasing[0], 1e-12)
	assert.InDelta(t, 0.3, decreasing[4], 1e-12)
	for i := 1; i < len(decreasing); i++ {
		assert.Less(t, decreasing[i], decreasing[i-1])
	}
}

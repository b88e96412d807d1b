package optimization

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Progress is one lifecycle update of a frontier run: the active phase
// and, during the sweep, how many targets have finished.
type Progress struct {
	Phase   string `json:"phase"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// ProgressFunc observes run progress. A nil observer is valid.
type ProgressFunc func(Progress)

// ComputeRequest describes one frontier run. An empty RunID selects a
// generated one.
type ComputeRequest struct {
	RunID    string
	Symbols  []string
	Start    time.Time
	End      time.Time
	Settings Settings
}

// FrontierService drives the solver through the three phases of a run
// and assembles the frontier curve. Results flow out as immutable
// FrontierResult values; the only error a run can produce is an
// input-data failure, raised before any solve.
type FrontierService struct {
	provider  StatisticsProvider
	optimizer *Optimizer
	log       zerolog.Logger

	progressMu sync.Mutex
	progress   ProgressFunc
}

// NewFrontierService creates the orchestrator. A nil solver selects the
// default penalty solver.
func NewFrontierService(provider StatisticsProvider, solver Solver, log zerolog.Logger) *FrontierService {
	return &FrontierService{
		provider:  provider,
		optimizer: NewOptimizer(solver),
		log:       log.With().Str("component", "frontier").Logger(),
	}
}

// OnProgress registers an observer for run lifecycle updates.
func (f *FrontierService) OnProgress(fn ProgressFunc) {
	f.progressMu.Lock()
	defer f.progressMu.Unlock()
	f.progress = fn
}

func (f *FrontierService) emit(p Progress) {
	f.progressMu.Lock()
	defer f.progressMu.Unlock()
	if f.progress != nil {
		f.progress(p)
	}
}

// Compute runs one full frontier computation: max-Sharpe anchor,
// min-volatility anchor, then the target-return sweep. Non-convergent
// solves degrade individual points and are surfaced as warnings; the
// run itself fails only when return statistics cannot be obtained or
// are malformed.
func (f *FrontierService) Compute(ctx context.Context, req ComputeRequest) (*FrontierResult, error) {
	started := time.Now()
	settings := req.Settings.withDefaults()

	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}

	f.emit(Progress{Phase: "statistics"})
	stats, err := f.provider.GetReturnStatistics(ctx, req.Symbols, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get return statistics: %w", err)
	}
	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("invalid return statistics: %w", err)
	}

	f.emit(Progress{Phase: "max_sharpe"})
	maxSharpe := f.optimizer.MaxSharpe(stats, settings)
	if !maxSharpe.Converged {
		f.log.Warn().Str("reason", maxSharpe.Message).Msg("Max-Sharpe solve did not converge, keeping best-found point")
	}
	maxSharpePerf := Evaluate(maxSharpe.Weights, stats, settings.TradingDays)

	f.emit(Progress{Phase: "min_volatility"})
	minVol := f.optimizer.MinVolatility(stats, settings)
	if !minVol.Converged {
		f.log.Warn().Str("reason", minVol.Message).Msg("Min-volatility solve did not converge, keeping best-found point")
	}
	minVolPerf := Evaluate(minVol.Weights, stats, settings.TradingDays)

	if minVolPerf.Return > maxSharpePerf.Return {
		f.log.Warn().
			Float64("min_vol_return", minVolPerf.Return).
			Float64("max_sharpe_return", maxSharpePerf.Return).
			Msg("Min-volatility return exceeds max-Sharpe return, sweeping a decreasing target range")
	}

	targets := targetReturns(minVolPerf.Return, maxSharpePerf.Return, settings.FrontierPoints)
	f.emit(Progress{Phase: "sweep", Total: len(targets)})
	points := f.sweep(stats, targets, settings)

	failed := 0
	for _, pt := range points {
		if !pt.Converged {
			failed++
		}
	}
	if failed > 0 {
		f.log.Warn().
			Int("failed", failed).
			Int("total", len(points)).
			Msg("Frontier sweep finished with non-convergent points")
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	result := &FrontierResult{
		RunID:         runID,
		Symbols:       stats.Symbols,
		Start:         req.Start.Format("2006-01-02"),
		End:           req.End.Format("2006-01-02"),
		MaxSharpe:     f.allocation(maxSharpe, maxSharpePerf, stats, settings),
		MinVolatility: f.allocation(minVol, minVolPerf, stats, settings),
		Frontier:      points,
		FailedPoints:  failed,
		Settings:      settings,
		ComputedAt:    started.UTC(),
		ElapsedMS:     time.Since(started).Milliseconds(),
	}

	f.emit(Progress{Phase: "complete"})
	f.log.Info().
		Str("run_id", result.RunID).
		Int("assets", stats.NumAssets()).
		Int("points", len(points)).
		Int("failed_points", failed).
		Int64("elapsed_ms", result.ElapsedMS).
		Msg("Frontier run complete")

	return result, nil
}

// sweep solves the target-constrained problem for every target in
// parallel. Targets are independent given the shared read-only
// statistics, so workers write into the pre-sized slice by index and
// collection needs no ordering step.
func (f *FrontierService) sweep(stats *ReturnStatistics, targets []float64, settings Settings) []FrontierPoint {
	points := make([]FrontierPoint, len(targets))

	workers := settings.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(targets) {
		workers = len(targets)
	}

	var done int64
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, target float64) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := f.optimizer.EfficientReturn(stats, target, settings)
			points[i] = FrontierPoint{
				TargetReturn: target,
				Volatility:   outcome.Value,
				Converged:    outcome.Converged,
			}
			if !outcome.Converged {
				f.log.Warn().
					Float64("target_return", target).
					Str("reason", outcome.Message).
					Msg("Sweep point did not converge, keeping best-found volatility")
			}

			f.emit(Progress{
				Phase:   "sweep",
				Current: int(atomic.AddInt64(&done, 1)),
				Total:   len(targets),
			})
		}(i, target)
	}

	wg.Wait()
	return points
}

// allocation labels an outcome's weights by symbol for reporting.
func (f *FrontierService) allocation(outcome Outcome, perf PortfolioPerformance, stats *ReturnStatistics, settings Settings) Allocation {
	weights := make(map[string]float64, len(stats.Symbols))
	for i, symbol := range stats.Symbols {
		weights[symbol] = outcome.Weights[i]
	}
	return Allocation{
		Weights:     weights,
		Performance: perf,
		SharpeRatio: perf.Sharpe(settings.RiskFreeRate),
		Converged:   outcome.Converged,
		Message:     outcome.Message,
	}
}

// targetReturns spans n targets from the min-volatility return to the
// max-Sharpe return, inclusive of both ends. A decreasing span is
// produced as-is when from > to.
func targetReturns(from, to float64, n int) []float64 {
	if n == 1 {
		return []float64{from}
	}
	targets := make([]float64, n)
	floats.Span(targets, from, to)
	return targets
}

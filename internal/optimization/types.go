package optimization

import (
	"fmt"
	"math"
	"time"
)

// minVariance floors the variance under a Sharpe denominator so that a
// zero-volatility portfolio yields a finite objective instead of NaN.
const minVariance = 1e-10

// ReturnStatistics holds the point estimates a frontier run operates on:
// the mean daily return per asset and the sample covariance matrix of
// daily returns, both indexed in the order of Symbols. Values are never
// mutated after construction.
type ReturnStatistics struct {
	Symbols     []string    `json:"symbols" msgpack:"symbols"`
	MeanReturns []float64   `json:"mean_returns" msgpack:"mean_returns"`
	Covariance  [][]float64 `json:"covariance" msgpack:"covariance"`
}

// NewReturnStatistics builds and validates a ReturnStatistics.
func NewReturnStatistics(symbols []string, meanReturns []float64, covariance [][]float64) (*ReturnStatistics, error) {
	stats := &ReturnStatistics{
		Symbols:     symbols,
		MeanReturns: meanReturns,
		Covariance:  covariance,
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	return stats, nil
}

// NumAssets returns the number of assets covered by the statistics.
func (s *ReturnStatistics) NumAssets() int {
	return len(s.MeanReturns)
}

// Validate checks the dimension and symmetry invariants: the covariance
// matrix must be square, match the mean-return vector, and satisfy
// cov[i][j] == cov[j][i] within floating tolerance.
func (s *ReturnStatistics) Validate() error {
	n := len(s.MeanReturns)
	if n == 0 {
		return fmt.Errorf("no assets in return statistics")
	}
	if len(s.Symbols) != n {
		return fmt.Errorf("symbol count %d doesn't match mean returns count %d", len(s.Symbols), n)
	}
	if len(s.Covariance) != n {
		return fmt.Errorf("covariance matrix size %d doesn't match asset count %d", len(s.Covariance), n)
	}
	for i := range s.Covariance {
		if len(s.Covariance[i]) != n {
			return fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(s.Covariance[i]), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(s.Covariance[i][j]-s.Covariance[j][i]) > 1e-9 {
				return fmt.Errorf("covariance matrix is not symmetric at (%d,%d)", i, j)
			}
		}
	}
	return nil
}

// PortfolioPerformance is the annualized performance of a weight vector
// under given return statistics.
type PortfolioPerformance struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// Sharpe computes the Sharpe ratio against a risk-free rate. The
// denominator carries the same variance floor as the solver objective,
// so a zero-volatility portfolio reports a finite ratio.
func (p PortfolioPerformance) Sharpe(riskFreeRate float64) float64 {
	return (p.Return - riskFreeRate) / math.Max(p.Volatility, math.Sqrt(minVariance))
}

// Settings carries the knobs of one optimization run. The zero value is
// not useful; use DefaultSettings or fill every field.
type Settings struct {
	RiskFreeRate   float64 `json:"risk_free_rate"`
	LowerBound     float64 `json:"lower_bound"`
	UpperBound     float64 `json:"upper_bound"`
	FrontierPoints int     `json:"frontier_points"`
	TradingDays    int     `json:"trading_days"`
	// Workers bounds the sweep fan-out. Zero or negative selects
	// GOMAXPROCS at run time.
	Workers int `json:"workers,omitempty"`
}

// DefaultSettings returns the standard run configuration: 1% risk-free
// rate, long-only full-investment bounds, a 50-point frontier, and 252
// trading days per year.
func DefaultSettings() Settings {
	return Settings{
		RiskFreeRate:   0.01,
		LowerBound:     0.0,
		UpperBound:     1.0,
		FrontierPoints: 50,
		TradingDays:    252,
	}
}

// withDefaults fills unusable fields so direct callers with partially
// built settings still get a well-formed run.
func (s Settings) withDefaults() Settings {
	if s.FrontierPoints <= 0 {
		s.FrontierPoints = 50
	}
	if s.TradingDays <= 0 {
		s.TradingDays = 252
	}
	if s.UpperBound <= s.LowerBound {
		s.LowerBound = 0.0
		s.UpperBound = 1.0
	}
	return s
}

// Bounds is the per-asset box constraint applied uniformly to every
// weight.
type Bounds struct {
	Lower float64
	Upper float64
}

// Outcome is the result of a single solver invocation. It is created
// fresh per call and immutable afterward. A failed solve is reported
// through Converged, never through an error: the best-found weights are
// always present so a sweep can keep going past bad points.
type Outcome struct {
	Weights   []float64 `json:"weights"`
	Value     float64   `json:"value"`
	Converged bool      `json:"converged"`
	Message   string    `json:"message,omitempty"`
}

// Allocation is a solved portfolio labeled by symbol, as reported to
// callers and artifacts.
type Allocation struct {
	Weights     map[string]float64   `json:"weights"`
	Performance PortfolioPerformance `json:"performance"`
	SharpeRatio float64              `json:"sharpe_ratio"`
	Converged   bool                 `json:"converged"`
	Message     string               `json:"message,omitempty"`
}

// FrontierPoint is one sweep result: the minimum volatility achieved at
// a target return. Volatility carries the raw objective value even when
// the point did not converge, keeping the curve continuous for plotting.
type FrontierPoint struct {
	TargetReturn float64 `json:"target_return"`
	Volatility   float64 `json:"volatility"`
	Converged    bool    `json:"converged"`
}

// FrontierResult bundles everything one run produces: the two anchor
// portfolios, the frontier curve, and run metadata.
type FrontierResult struct {
	RunID         string          `json:"run_id"`
	Symbols       []string        `json:"symbols"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	MaxSharpe     Allocation      `json:"max_sharpe"`
	MinVolatility Allocation      `json:"min_volatility"`
	Frontier      []FrontierPoint `json:"frontier"`
	FailedPoints  int             `json:"failed_points"`
	Settings      Settings        `json:"settings"`
	ComputedAt    time.Time       `json:"computed_at"`
	ElapsedMS     int64           `json:"elapsed_ms"`
}

// EqualWeights returns the 1/N starting portfolio. Under default bounds
// it is a feasible interior point: entries sum to one and each lies in
// [0, 1].
func EqualWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return weights
}

package optimization

import "math"

// Evaluate computes the annualized performance of a weight vector under
// the given return statistics.
//
//	return     = Σ w_i · μ_i · tradingDays
//	volatility = sqrt(wᵀ·Σ·w) · sqrt(tradingDays)
//
// The quadratic form is clamped at zero before the square root so float
// round-off on a positive-semidefinite matrix cannot produce NaN. The
// caller guarantees len(weights) == stats.NumAssets(); dimensions are
// checked once at the data boundary, not per evaluation. Pure function,
// no side effects.
func Evaluate(weights []float64, stats *ReturnStatistics, tradingDays int) PortfolioPerformance {
	n := len(weights)

	var dailyReturn float64
	for i := 0; i < n; i++ {
		dailyReturn += weights[i] * stats.MeanReturns[i]
	}

	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += weights[i] * weights[j] * stats.Covariance[i][j]
		}
	}

	factor := float64(tradingDays)
	return PortfolioPerformance{
		Return:     dailyReturn * factor,
		Volatility: math.Sqrt(math.Max(variance, 0)) * math.Sqrt(factor),
	}
}

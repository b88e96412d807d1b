package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Objective is a scalar function over a weight vector, minimized by a
// Solver.
type Objective func(weights []float64) float64

// Constraint is an equality constraint: it returns zero when the weight
// vector is feasible.
type Constraint func(weights []float64) float64

// NegativeSharpe builds the max-Sharpe objective in minimization form:
// -(return - riskFreeRate) / volatility. The volatility denominator is
// floored (see minVariance) so the minimizer never sees NaN or an
// infinity, even at a degenerate zero-volatility point.
func NegativeSharpe(stats *ReturnStatistics, riskFreeRate float64, tradingDays int) Objective {
	return func(weights []float64) float64 {
		perf := Evaluate(weights, stats, tradingDays)
		vol := math.Max(perf.Volatility, math.Sqrt(minVariance))
		return -(perf.Return - riskFreeRate) / vol
	}
}

// VolatilityOnly builds the objective minimized on the frontier: the
// annualized portfolio volatility.
func VolatilityOnly(stats *ReturnStatistics, tradingDays int) Objective {
	return func(weights []float64) float64 {
		return Evaluate(weights, stats, tradingDays).Volatility
	}
}

// BudgetConstraint is the full-investment equality Σw = 1.
func BudgetConstraint() Constraint {
	return func(weights []float64) float64 {
		return floats.Sum(weights) - 1.0
	}
}

// TargetReturnConstraint pins the annualized expected return to the
// given target.
func TargetReturnConstraint(stats *ReturnStatistics, target float64, tradingDays int) Constraint {
	return func(weights []float64) float64 {
		return Evaluate(weights, stats, tradingDays).Return - target
	}
}

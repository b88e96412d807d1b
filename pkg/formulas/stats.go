package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two equal-length series
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// CalculateReturns converts a price series to simple percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]. A zero previous price
// yields a zero return rather than an infinity.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// AnnualizedVolatility scales the standard deviation of periodic returns
// by the square root of the number of trading periods per year.
func AnnualizedVolatility(returns []float64, tradingDays int) float64 {
	if len(returns) == 0 || tradingDays <= 0 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(float64(tradingDays))
}

// AnnualizedReturn computes the compound annual growth rate from a series
// of periodic returns: ((1+r1)*...*(1+rN))^(tradingDays/N) - 1.
// Series shorter than 3 periods return the plain cumulative return to
// avoid extreme annualization.
func AnnualizedReturn(returns []float64, tradingDays int) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}

	numPeriods := float64(len(returns))
	if numPeriods < 3 || tradingDays <= 0 {
		return cumulative - 1
	}

	years := numPeriods / float64(tradingDays)
	return math.Pow(cumulative, 1.0/years) - 1
}

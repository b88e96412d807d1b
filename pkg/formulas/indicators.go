package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates the Simple Moving Average over the trailing window.
// Returns nil when the series is shorter than the window.
func SMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// EMA calculates the Exponential Moving Average.
//
// EMA_today = (Price_today × multiplier) + (EMA_yesterday × (1 - multiplier))
// where multiplier = 2 / (length + 1)
//
// Series shorter than the window fall back to the plain mean.
func EMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) == 0 {
		return nil
	}

	if len(closes) < length {
		mean := Mean(closes)
		return &mean
	}

	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	mean := Mean(closes[len(closes)-length:])
	return &mean
}

// RSI calculates the Relative Strength Index.
//
// RSI = 100 - (100 / (1 + RS)), RS = avg gain / avg loss over length periods.
//
// Returns nil when fewer than length+1 closes are available.
func RSI(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

func isNaN(f float64) bool {
	return f != f
}

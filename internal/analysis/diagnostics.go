// Package analysis produces per-asset indicator snapshots for the API
// and run reports. Nothing here feeds back into the optimizer.
package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/history"
	"github.com/aristath/frontier/pkg/formulas"
)

// AssetDiagnostics is a per-symbol indicator snapshot. Indicator fields
// are nil when the series is too short to compute them.
type AssetDiagnostics struct {
	Symbol               string   `json:"symbol"`
	Bars                 int      `json:"bars"`
	LastClose            float64  `json:"last_close"`
	SMA20                *float64 `json:"sma_20,omitempty"`
	EMA50                *float64 `json:"ema_50,omitempty"`
	RSI14                *float64 `json:"rsi_14,omitempty"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
}

// Compute derives the diagnostics for one symbol from its adjusted
// closes, oldest first.
func Compute(symbol string, closes []float64, tradingDays int) AssetDiagnostics {
	diag := AssetDiagnostics{
		Symbol: symbol,
		Bars:   len(closes),
	}
	if len(closes) == 0 {
		return diag
	}

	diag.LastClose = closes[len(closes)-1]
	diag.SMA20 = formulas.SMA(closes, 20)
	diag.EMA50 = formulas.EMA(closes, 50)
	diag.RSI14 = formulas.RSI(closes, 14)

	returns := formulas.CalculateReturns(closes)
	diag.AnnualizedReturn = formulas.AnnualizedReturn(returns, tradingDays)
	diag.AnnualizedVolatility = formulas.AnnualizedVolatility(returns, tradingDays)

	return diag
}

// Service loads price history and computes diagnostics per symbol.
type Service struct {
	store       *history.Store
	tradingDays int
	log         zerolog.Logger
}

// NewService creates a diagnostics service.
func NewService(store *history.Store, tradingDays int, log zerolog.Logger) *Service {
	return &Service{
		store:       store,
		tradingDays: tradingDays,
		log:         log.With().Str("component", "analysis").Logger(),
	}
}

// ForSymbols computes diagnostics for every symbol in the window. A
// symbol whose history cannot be loaded is logged and skipped.
func (s *Service) ForSymbols(ctx context.Context, symbols []string, start, end time.Time) []AssetDiagnostics {
	out := make([]AssetDiagnostics, 0, len(symbols))

	for _, symbol := range symbols {
		prices, err := s.store.GetCloses(ctx, symbol, start, end)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to load history for diagnostics")
			continue
		}

		closes := make([]float64, 0, len(prices))
		for _, p := range prices {
			if p.AdjClose > 0 {
				closes = append(closes, p.AdjClose)
			}
		}

		out = append(out, Compute(symbol, closes, s.tradingDays))
	}

	return out
}

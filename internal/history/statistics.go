package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/optimization"
	"github.com/aristath/frontier/internal/storage"
	"github.com/aristath/frontier/pkg/formulas"
)

// minObservations is the fewest aligned trading days a window may hold.
const minObservations = 30

// StatsCachePrefix namespaces memoized return statistics in the cache.
const StatsCachePrefix = "stats:"

// StatisticsService assembles per-asset return statistics from stored
// price history. It satisfies optimization.StatisticsProvider.
type StatisticsService struct {
	store *Store
	cache *storage.Cache // nil disables memoization
	ttl   time.Duration
	log   zerolog.Logger
}

// NewStatisticsService creates a statistics service. cache may be nil.
func NewStatisticsService(store *Store, cache *storage.Cache, ttl time.Duration, log zerolog.Logger) *StatisticsService {
	return &StatisticsService{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "statistics").Logger(),
	}
}

// GetReturnStatistics loads adjusted closes for the symbols, aligns
// them on a shared calendar and derives daily mean returns plus the
// sample covariance matrix. Results are memoized when a cache is
// configured. Any failure comes back as an error value.
func (s *StatisticsService) GetReturnStatistics(ctx context.Context, symbols []string, start, end time.Time) (*optimization.ReturnStatistics, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}

	key := statsCacheKey(symbols, start, end)
	if s.cache != nil {
		var cached optimization.ReturnStatistics
		if err := s.cache.Get(ctx, key, &cached); err == nil && cached.Validate() == nil {
			s.log.Debug().Str("key", key).Msg("Using cached return statistics")
			return &cached, nil
		}
	}

	closesBySymbol := make(map[string]map[string]float64, len(symbols))
	for _, symbol := range symbols {
		prices, err := s.store.GetCloses(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
		}

		closes := make(map[string]float64, len(prices))
		for _, p := range prices {
			if p.AdjClose > 0 {
				closes[p.Date] = p.AdjClose
			}
		}
		if len(closes) == 0 {
			return nil, fmt.Errorf("no price history for %s between %s and %s",
				symbol, start.Format(DateFormat), end.Format(DateFormat))
		}
		closesBySymbol[symbol] = closes
	}

	dates, aligned := alignCloses(symbols, closesBySymbol)
	if len(dates) < minObservations {
		return nil, fmt.Errorf("insufficient aligned history: %d observations, need at least %d",
			len(dates), minObservations)
	}

	n := len(symbols)
	returns := make([][]float64, n)
	means := make([]float64, n)
	for i := range symbols {
		returns[i] = formulas.CalculateReturns(aligned[i])
		means[i] = formulas.Mean(returns[i])
	}

	covariance := make([][]float64, n)
	for i := 0; i < n; i++ {
		covariance[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := formulas.Covariance(returns[i], returns[j])
			covariance[i][j] = c
			covariance[j][i] = c
		}
	}

	stats, err := optimization.NewReturnStatistics(symbols, means, covariance)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache return statistics")
		}
	}

	s.log.Info().
		Int("symbols", n).
		Int("observations", len(dates)).
		Msg("Assembled return statistics")

	return stats, nil
}

// alignCloses builds the shared calendar across symbols. A date is kept
// when every symbol has a close on it, or is missing one for the first
// day in a row and can carry the previous close forward. Longer gaps
// drop the date entirely.
func alignCloses(symbols []string, closesBySymbol map[string]map[string]float64) ([]string, [][]float64) {
	dateSet := make(map[string]bool)
	for _, closes := range closesBySymbol {
		for date := range closes {
			dateSet[date] = true
		}
	}

	calendar := make([]string, 0, len(dateSet))
	for date := range dateSet {
		calendar = append(calendar, date)
	}
	sort.Strings(calendar)

	lastClose := make(map[string]float64, len(symbols))
	gapRun := make(map[string]int, len(symbols))

	var dates []string
	aligned := make([][]float64, len(symbols))

	row := make([]float64, len(symbols))
	for _, date := range calendar {
		complete := true
		for i, symbol := range symbols {
			if close, ok := closesBySymbol[symbol][date]; ok {
				row[i] = close
				lastClose[symbol] = close
				gapRun[symbol] = 0
				continue
			}

			prev, seen := lastClose[symbol]
			if seen && gapRun[symbol] == 0 {
				row[i] = prev
			} else {
				complete = false
			}
			gapRun[symbol]++
		}

		if complete {
			dates = append(dates, date)
			for i := range symbols {
				aligned[i] = append(aligned[i], row[i])
			}
		}
	}

	return dates, aligned
}

// statsCacheKey derives a deterministic cache key from the request,
// order-independent in the symbols.
func statsCacheKey(symbols []string, start, end time.Time) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	keyData := fmt.Sprintf("%s|%s|%s",
		strings.Join(sorted, ","), start.Format(DateFormat), end.Format(DateFormat))
	h := sha256.Sum256([]byte(keyData))
	return StatsCachePrefix + hex.EncodeToString(h[:16])
}

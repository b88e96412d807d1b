package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/storage"
)

// BarFetcher is the slice of the market-data client the sync needs.
type BarFetcher interface {
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.PriceBar, error)
}

// SyncSummary reports the outcome of one sync pass.
type SyncSummary struct {
	Synced map[string]int `json:"synced"`
	Failed []string       `json:"failed"`
}

// SyncService refreshes stored price history from the market-data
// client. A refresh that stores anything invalidates memoized return
// statistics, since adjusted closes can change retroactively.
type SyncService struct {
	fetcher BarFetcher
	store   *Store
	cache   *storage.Cache // nil skips statistics invalidation
	log     zerolog.Logger
}

// NewSyncService creates a sync service. cache may be nil.
func NewSyncService(fetcher BarFetcher, store *Store, cache *storage.Cache, log zerolog.Logger) *SyncService {
	return &SyncService{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		log:     log.With().Str("component", "sync").Logger(),
	}
}

// Sync fetches and upserts bars for every symbol in [start, end]. A
// failing symbol is logged and skipped; Sync errors only when no symbol
// could be refreshed.
func (s *SyncService) Sync(ctx context.Context, symbols []string, start, end time.Time) (*SyncSummary, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to sync")
	}

	summary := &SyncSummary{Synced: make(map[string]int)}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		bars, err := s.fetcher.GetDailyBars(ctx, symbol, start, end)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch bars, skipping symbol")
			summary.Failed = append(summary.Failed, symbol)
			continue
		}

		count, err := s.store.UpsertBars(ctx, symbol, bars)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store bars, skipping symbol")
			summary.Failed = append(summary.Failed, symbol)
			continue
		}

		summary.Synced[symbol] = count
	}

	if len(summary.Synced) == 0 {
		return summary, fmt.Errorf("all %d symbols failed to sync", len(symbols))
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPrefix(ctx, StatsCachePrefix); err != nil {
			s.log.Warn().Err(err).Msg("Failed to invalidate cached statistics")
		}
	}

	s.log.Info().
		Int("synced", len(summary.Synced)).
		Int("failed", len(summary.Failed)).
		Time("start", start).
		Time("end", end).
		Msg("Price history sync complete")

	return summary, nil
}

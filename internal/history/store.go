// Package history persists daily price bars and assembles the return
// statistics consumed by the optimizer.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/database"
)

// DateFormat is how bar dates are stored in daily_prices.
const DateFormat = "2006-01-02"

// DailyPrice is one stored observation for a symbol.
type DailyPrice struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
}

// Coverage summarizes what the store holds for one symbol.
type Coverage struct {
	Symbol    string `json:"symbol"`
	Bars      int    `json:"bars"`
	FirstDate string `json:"first_date,omitempty"`
	LastDate  string `json:"last_date,omitempty"`
}

// Store reads and writes the daily_prices table.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a price store.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}
}

// UpsertBars writes bars for symbol, replacing rows that already exist
// for the same date. Returns the number of bars written.
func (s *Store) UpsertBars(ctx context.Context, symbol string, bars []yahoo.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_prices (symbol, date, close, adj_close)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				close = excluded.close,
				adj_close = excluded.adj_close
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, bar := range bars {
			date := bar.Date.UTC().Format(DateFormat)
			if _, err := stmt.ExecContext(ctx, symbol, date, bar.Close, bar.AdjClose); err != nil {
				return fmt.Errorf("failed to upsert %s %s: %w", symbol, date, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(bars), nil
}

// GetCloses loads the dated closes for symbol within [start, end],
// ordered by date ascending.
func (s *Store) GetCloses(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, close, adj_close
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, start.UTC().Format(DateFormat), end.UTC().Format(DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Date, &p.Close, &p.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan close for %s: %w", symbol, err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// GetCoverage reports bar count and date range for symbol.
func (s *Store) GetCoverage(ctx context.Context, symbol string) (Coverage, error) {
	cov := Coverage{Symbol: symbol}

	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(date), MAX(date)
		FROM daily_prices
		WHERE symbol = ?
	`, symbol).Scan(&cov.Bars, &first, &last)
	if err != nil {
		return cov, fmt.Errorf("failed to query coverage for %s: %w", symbol, err)
	}

	if first.Valid {
		cov.FirstDate = first.String
	}
	if last.Valid {
		cov.LastDate = last.String
	}
	return cov, nil
}

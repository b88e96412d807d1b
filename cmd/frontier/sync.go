package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/history"
	"github.com/aristath/frontier/internal/storage"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh stored price history for the configured basket",
		RunE:  runSync,
	}
}

// runSync pulls daily bars for every configured symbol from the
// configured start date through today, matching the scheduled sync job.
func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := history.NewStore(db.Conn(), log)
	cache := storage.NewCache(db.Conn())
	syncer := history.NewSyncService(yahoo.NewClient(log), store, cache, log)

	start, _, err := cfg.DateRange()
	if err != nil {
		return err
	}

	summary, err := syncer.Sync(cmd.Context(), cfg.Symbols, start, time.Now().UTC())
	if err != nil {
		return err
	}

	if purged, err := cache.PurgeExpired(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("Cache purge failed")
	} else if purged > 0 {
		log.Debug().Int64("purged", purged).Msg("Expired cache entries purged")
	}

	for _, symbol := range cfg.Symbols {
		if bars, ok := summary.Synced[symbol]; ok {
			fmt.Printf("  %-10s %d bars\n", symbol, bars)
		} else {
			fmt.Printf("  %-10s failed\n", symbol)
		}
	}

	return nil
}

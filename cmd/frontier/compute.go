package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/charts"
	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/history"
	"github.com/aristath/frontier/internal/optimization"
	"github.com/aristath/frontier/internal/services"
	"github.com/aristath/frontier/internal/storage"
)

func computeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run one frontier computation and write its artifacts",
		Long: `compute refreshes price history for the basket (unless --offline),
solves the maximum-Sharpe and minimum-volatility portfolios, sweeps the
efficient frontier between them, and writes the JSON and chart artifacts
into the data directory.`,
		RunE: runCompute,
	}

	cmd.Flags().String("basket", "", "Basket YAML file overriding the configured universe")
	cmd.Flags().StringSlice("symbols", nil, "Asset symbols (comma-separated)")
	cmd.Flags().String("start", "", "Window start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Window end date (YYYY-MM-DD)")
	cmd.Flags().Float64("risk-free-rate", 0, "Annual risk-free rate, e.g. 0.01")
	cmd.Flags().Int("points", 0, "Number of frontier sweep points")
	cmd.Flags().Float64("lower-bound", 0, "Per-asset weight lower bound")
	cmd.Flags().Float64("upper-bound", 0, "Per-asset weight upper bound")
	cmd.Flags().Bool("offline", false, "Skip the price-history sync and use stored data only")

	return cmd
}

func runCompute(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if err := applyComputeFlags(cmd, cfg); err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := history.NewStore(db.Conn(), log)
	cache := storage.NewCache(db.Conn())

	start, end, err := cfg.DateRange()
	if err != nil {
		return err
	}

	offline, _ := cmd.Flags().GetBool("offline")
	if !offline {
		syncer := history.NewSyncService(yahoo.NewClient(log), store, cache, log)
		if _, err := syncer.Sync(cmd.Context(), cfg.Symbols, start, end); err != nil {
			return fmt.Errorf("price sync failed: %w", err)
		}
	}

	statistics := history.NewStatisticsService(store, cache, cfg.CacheTTL(), log)
	frontier := optimization.NewFrontierService(statistics, nil, log)
	frontier.OnProgress(func(p optimization.Progress) {
		if p.Phase == "sweep" && p.Current > 0 {
			log.Debug().Int("current", p.Current).Int("total", p.Total).Msg("Sweep progress")
		}
	})
	runner := services.NewRunService(cfg, frontier, nil, log)

	result, err := runner.Run(cmd.Context(), nil)
	if err != nil {
		return err
	}

	printSummary(result, cfg.DataDir)
	return nil
}

// applyComputeFlags layers the basket file and then the individual
// flags onto the loaded configuration, re-validating the result.
func applyComputeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("basket") {
		path, _ := flags.GetString("basket")
		basket, err := config.LoadBasket(path)
		if err != nil {
			return err
		}
		basket.ApplyTo(cfg)
	}

	if flags.Changed("symbols") {
		cfg.Symbols, _ = flags.GetStringSlice("symbols")
	}
	if flags.Changed("start") {
		cfg.StartDate, _ = flags.GetString("start")
	}
	if flags.Changed("end") {
		cfg.EndDate, _ = flags.GetString("end")
	}
	if flags.Changed("risk-free-rate") {
		cfg.RiskFreeRate, _ = flags.GetFloat64("risk-free-rate")
	}
	if flags.Changed("points") {
		cfg.FrontierPoints, _ = flags.GetInt("points")
	}
	if flags.Changed("lower-bound") {
		cfg.LowerBound, _ = flags.GetFloat64("lower-bound")
	}
	if flags.Changed("upper-bound") {
		cfg.UpperBound, _ = flags.GetFloat64("upper-bound")
	}

	return cfg.Validate()
}

// printSummary writes the run outcome to stdout for humans; the JSON
// artifact is the machine-readable record.
func printSummary(result *optimization.FrontierResult, dataDir string) {
	fmt.Printf("\nEfficient frontier, %s to %s\n", result.Start, result.End)
	fmt.Printf("Run %s finished in %dms\n\n", result.RunID, result.ElapsedMS)

	printAllocation("Maximum Sharpe ratio portfolio", result.MaxSharpe, result.Symbols)
	printAllocation("Minimum volatility portfolio", result.MinVolatility, result.Symbols)

	fmt.Printf("Frontier: %d points", len(result.Frontier))
	if result.FailedPoints > 0 {
		fmt.Printf(", %d did not converge", result.FailedPoints)
	}
	fmt.Println()
	fmt.Printf("Artifacts: %s\n", charts.LatestJSONPath(dataDir))
	fmt.Printf("           %s\n", charts.LatestPNGPath(dataDir))
}

func printAllocation(title string, alloc optimization.Allocation, symbols []string) {
	fmt.Println(title)
	fmt.Printf("  return %7.2f%%   volatility %7.2f%%   sharpe %6.3f\n",
		alloc.Performance.Return*100, alloc.Performance.Volatility*100, alloc.SharpeRatio)
	if !alloc.Converged {
		fmt.Printf("  solver did not converge: %s\n", alloc.Message)
	}
	for _, symbol := range symbols {
		fmt.Printf("  %-10s %6.2f%%\n", symbol, alloc.Weights[symbol]*100)
	}
	fmt.Println()
}

// Package main is the entry point for frontier, a mean-variance
// portfolio optimizer. It computes the maximum-Sharpe and
// minimum-volatility portfolios for a basket of assets and sweeps the
// efficient frontier between them, either as a one-shot run or as a
// long-running HTTP service with scheduled recomputation and backups.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/pkg/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "0.1.0"

var (
	envFile   string
	logLevel  string
	logPretty bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "frontier",
		Short: "Mean-variance efficient frontier optimizer",
		Long: `frontier computes Markowitz efficient frontiers for a basket of
assets: the maximum-Sharpe portfolio, the minimum-volatility portfolio,
and the locus of minimum-volatility portfolios across a span of target
returns. Price history is synced from Yahoo Finance into SQLite; runs
produce a JSON artifact and a rendered chart.`,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load before configuration (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", true, "Human-readable console log output")

	rootCmd.AddCommand(computeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("frontier version %s\n", version)
		},
	}
}

// bootstrap loads configuration and builds the root logger, shared by
// every subcommand. Precedence, lowest to highest: environment (plus
// env file), basket file, command-line flags.
func bootstrap(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, zerolog.Logger{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.LogPretty = logPretty
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	return cfg, log, nil
}

// openDatabase opens the price-history database at its configured path.
func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/frontier/internal/optimization"
)

// DateFormat is the wire format for run window dates.
const DateFormat = "2006-01-02"

// Config holds application configuration
type Config struct {
	// Run window and basket.
	Symbols   []string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD

	// Optimization knobs.
	RiskFreeRate   float64
	LowerBound     float64
	UpperBound     float64
	FrontierPoints int
	TradingDays    int
	Workers        int // 0 selects GOMAXPROCS

	// Ambient.
	DataDir      string // Base directory for database and artifacts, always absolute
	DatabaseFile string
	BasketFile   string // Optional YAML basket overriding the run window
	Host         string
	Port         int
	LogLevel     string
	LogPretty    bool

	// Cache and schedules (serve mode).
	CacheTTLMinutes     int
	SyncSchedule        string
	ComputeSchedule     string
	BackupSchedule      string
	MaintenanceSchedule string

	// S3-compatible backup target. Backups are disabled when the
	// bucket is empty.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
	BackupRetention   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		Symbols:   splitSymbols(getEnv("FRONTIER_SYMBOLS", "AMZN,AAPL,MSFT,GOOGL")),
		StartDate: getEnv("FRONTIER_START_DATE", "2015-01-01"),
		EndDate:   getEnv("FRONTIER_END_DATE", "2024-01-01"),

		RiskFreeRate:   getEnvAsFloat("FRONTIER_RISK_FREE_RATE", 0.01),
		LowerBound:     getEnvAsFloat("FRONTIER_LOWER_BOUND", 0.0),
		UpperBound:     getEnvAsFloat("FRONTIER_UPPER_BOUND", 1.0),
		FrontierPoints: getEnvAsInt("FRONTIER_POINTS", 50),
		TradingDays:    getEnvAsInt("FRONTIER_TRADING_DAYS", 252),
		Workers:        getEnvAsInt("FRONTIER_WORKERS", 0),

		DataDir:      absDataDir,
		DatabaseFile: getEnv("FRONTIER_DB_FILE", "history.db"),
		BasketFile:   getEnv("FRONTIER_BASKET_FILE", ""),
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnvAsInt("PORT", 8080),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", true),

		CacheTTLMinutes:     getEnvAsInt("FRONTIER_CACHE_TTL_MINUTES", 1440),
		SyncSchedule:        getEnv("FRONTIER_SYNC_SCHEDULE", "0 0 7 * * *"),
		ComputeSchedule:     getEnv("FRONTIER_COMPUTE_SCHEDULE", "0 30 7 * * *"),
		BackupSchedule:      getEnv("FRONTIER_BACKUP_SCHEDULE", "0 0 2 * * 0"),
		MaintenanceSchedule: getEnv("FRONTIER_MAINTENANCE_SCHEDULE", "0 0 3 * * 0"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:          getEnv("R2_BUCKET", ""),
		BackupRetention:   getEnvAsInt("FRONTIER_BACKUP_RETENTION", 5),
	}

	if cfg.BasketFile != "" {
		basket, err := LoadBasket(cfg.BasketFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load basket file: %w", err)
		}
		basket.ApplyTo(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration describes a runnable setup
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	if c.FrontierPoints <= 0 {
		return fmt.Errorf("frontier points must be positive, got %d", c.FrontierPoints)
	}
	if c.TradingDays <= 0 {
		return fmt.Errorf("trading days must be positive, got %d", c.TradingDays)
	}
	if c.UpperBound <= c.LowerBound {
		return fmt.Errorf("upper bound %v must exceed lower bound %v", c.UpperBound, c.LowerBound)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	start, end, err := c.DateRange()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("end date %s must be after start date %s", c.EndDate, c.StartDate)
	}

	return nil
}

// DateRange parses the configured run window.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(DateFormat, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", c.StartDate, err)
	}
	end, err := time.Parse(DateFormat, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", c.EndDate, err)
	}
	return start, end, nil
}

// DatabasePath returns the absolute path of the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

// BackupEnabled reports whether an S3-compatible backup target is
// configured.
func (c *Config) BackupEnabled() bool {
	return c.R2Bucket != "" && c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != ""
}

// CacheTTL returns the statistics cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// OptimizationSettings projects the core knobs into a run settings
// value, so runs with different settings can coexist.
func (c *Config) OptimizationSettings() optimization.Settings {
	return optimization.Settings{
		RiskFreeRate:   c.RiskFreeRate,
		LowerBound:     c.LowerBound,
		UpperBound:     c.UpperBound,
		FrontierPoints: c.FrontierPoints,
		TradingDays:    c.TradingDays,
		Workers:        c.Workers,
	}
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if symbol := strings.TrimSpace(part); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

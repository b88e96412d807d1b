package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Basket describes a named asset universe and optional optimization
// overrides, loaded from a YAML file. Numeric fields are pointers so a
// basket can pin a value to zero without clobbering the defaults.
type Basket struct {
	Name           string   `yaml:"name"`
	Symbols        []string `yaml:"symbols"`
	StartDate      string   `yaml:"start"`
	EndDate        string   `yaml:"end"`
	RiskFreeRate   *float64 `yaml:"risk_free_rate"`
	LowerBound     *float64 `yaml:"lower_bound"`
	UpperBound     *float64 `yaml:"upper_bound"`
	FrontierPoints *int     `yaml:"frontier_points"`
	TradingDays    *int     `yaml:"trading_days"`
}

// LoadBasket parses a basket definition from a YAML file.
func LoadBasket(path string) (*Basket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read basket file: %w", err)
	}

	var basket Basket
	if err := yaml.Unmarshal(data, &basket); err != nil {
		return nil, fmt.Errorf("failed to parse basket file: %w", err)
	}

	if len(basket.Symbols) == 0 {
		return nil, fmt.Errorf("basket %q has no symbols", basket.Name)
	}

	return &basket, nil
}

// ApplyTo overrides the config's run window with the basket's values.
// Unset basket fields leave the config untouched.
func (b *Basket) ApplyTo(cfg *Config) {
	if len(b.Symbols) > 0 {
		cfg.Symbols = b.Symbols
	}
	if b.StartDate != "" {
		cfg.StartDate = b.StartDate
	}
	if b.EndDate != "" {
		cfg.EndDate = b.EndDate
	}
	if b.RiskFreeRate != nil {
		cfg.RiskFreeRate = *b.RiskFreeRate
	}
	if b.LowerBound != nil {
		cfg.LowerBound = *b.LowerBound
	}
	if b.UpperBound != nil {
		cfg.UpperBound = *b.UpperBound
	}
	if b.FrontierPoints != nil {
		cfg.FrontierPoints = *b.FrontierPoints
	}
	if b.TradingDays != nil {
		cfg.TradingDays = *b.TradingDays
	}
}

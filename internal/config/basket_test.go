package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBasket(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "basket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadBasket(t *testing.T) {
	path := writeBasket(t, `
name: big-tech
symbols: [NVDA, TSLA]
start: "2018-01-01"
end: "2022-01-01"
risk_free_rate: 0.0
frontier_points: 20
`)

	basket, err := LoadBasket(path)
	require.NoError(t, err)

	assert.Equal(t, "big-tech", basket.Name)
	assert.Equal(t, []string{"NVDA", "TSLA"}, basket.Symbols)
	assert.Equal(t, "2018-01-01", basket.StartDate)
	require.NotNil(t, basket.RiskFreeRate)
	assert.Equal(t, 0.0, *basket.RiskFreeRate)
	require.NotNil(t, basket.FrontierPoints)
	assert.Equal(t, 20, *basket.FrontierPoints)
	assert.Nil(t, basket.TradingDays)
}

func TestLoadBasketErrors(t *testing.T) {
	_, err := LoadBasket(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read basket file")

	_, err = LoadBasket(writeBasket(t, "symbols: [not yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse basket file")

	_, err = LoadBasket(writeBasket(t, "name: empty\nsymbols: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no symbols")
}

func TestBasketApplyTo(t *testing.T) {
	cfg := validConfig(t)
	rate := 0.0
	points := 15

	basket := &Basket{
		Symbols:        []string{"NVDA"},
		StartDate:      "2019-01-01",
		RiskFreeRate:   &rate,
		FrontierPoints: &points,
	}
	basket.ApplyTo(cfg)

	assert.Equal(t, []string{"NVDA"}, cfg.Symbols)
	assert.Equal(t, "2019-01-01", cfg.StartDate)
	assert.Equal(t, "2024-01-01", cfg.EndDate, "unset basket field keeps config value")
	assert.Equal(t, 0.0, cfg.RiskFreeRate, "zero override applies")
	assert.Equal(t, 15, cfg.FrontierPoints)
	assert.Equal(t, 252, cfg.TradingDays)
}

func TestLoadAppliesBasket(t *testing.T) {
	path := writeBasket(t, `
name: override
symbols: [IBM, ORCL]
start: "2016-01-01"
end: "2021-01-01"
`)

	t.Setenv("FRONTIER_DATA_DIR", t.TempDir())
	t.Setenv("FRONTIER_BASKET_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"IBM", "ORCL"}, cfg.Symbols)
	assert.Equal(t, "2016-01-01", cfg.StartDate)
	assert.Equal(t, "2021-01-01", cfg.EndDate)
}

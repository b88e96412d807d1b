// Package yahoo fetches daily price history from the Yahoo Finance
// chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client is a Yahoo Finance chart API client
type Client struct {
	client     *http.Client
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    defaultBaseURL,
		maxRetries: 3,
		retryDelay: time.Second,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// GetDailyBars fetches daily bars for symbol within [start, end].
// Transient failures are retried with exponential backoff. An unknown
// symbol yields an empty slice, not an error.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.log.Warn().
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Retrying historical data fetch")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		bars, err := c.fetchDailyBars(ctx, symbol, start, end)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

func (c *Client) fetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	// Chart API returns JSON (more reliable than the CSV download)
	baseURL := c.baseURL + "/v8/finance/chart/" + url.QueryEscape(symbol)

	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", fmt.Sprintf("%d", start.Unix()))
	params.Add("period2", fmt.Sprintf("%d", end.Unix()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []float64 `json:"close"`
					} `json:"quote"`
					AdjClose []struct {
						AdjClose []float64 `json:"adjclose"`
					} `json:"adjclose"`
				} `json:"indicators"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"chart"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.Chart.Error)
	}

	if len(result.Chart.Result) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return []PriceBar{}, nil
	}

	chartData := result.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No quote data in response")
		return []PriceBar{}, nil
	}

	quote := chartData.Indicators.Quote[0]

	var adjCloseData []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	var bars []PriceBar
	for i := range chartData.Timestamp {
		if i >= len(quote.Close) {
			continue
		}

		// Yahoo returns null for halted days, which decodes to zero
		if quote.Close[i] == 0 {
			continue
		}

		adjClose := quote.Close[i]
		if i < len(adjCloseData) && adjCloseData[i] != 0 {
			adjClose = adjCloseData[i]
		}

		bars = append(bars, PriceBar{
			Date:     time.Unix(chartData.Timestamp[i], 0).UTC(),
			Close:    quote.Close[i],
			AdjClose: adjClose,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Time("start", start).
		Time("end", end).
		Int("count", len(bars)).
		Msg("Fetched historical prices")

	return bars, nil
}

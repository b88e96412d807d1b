package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected []float64
	}{
		{
			name:     "basic percent change",
			prices:   []float64{100, 110, 99},
			expected: []float64{0.10, -0.10},
		},
		{
			name:     "flat series",
			prices:   []float64{50, 50, 50},
			expected: []float64{0, 0},
		},
		{
			name:     "zero previous price yields zero return",
			prices:   []float64{0, 10},
			expected: []float64{0},
		},
		{
			name:     "too short",
			prices:   []float64{100},
			expected: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			returns := CalculateReturns(tt.prices)
			require.Len(t, returns, len(tt.expected))
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], returns[i], 1e-12)
			}
		})
	}
}

func TestMeanStdDevVariance(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, Mean(data), 1e-12)
	// Sample variance of the series is 32/7.
	assert.InDelta(t, 32.0/7.0, Variance(data), 1e-12)
	assert.InDelta(t, 2.138089935, StdDev(data), 1e-6)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, Variance(nil))
}

func TestCovariance(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}

	// y = 2x, so cov(x, y) = 2 * var(x).
	assert.InDelta(t, 2*Variance(x), Covariance(x, y), 1e-12)
	assert.Equal(t, 0.0, Covariance(x, []float64{1, 2}))
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedVolatility(nil, 252))
	assert.Equal(t, 0.0, AnnualizedVolatility(make([]float64, 10), 252))

	returns := []float64{0.01, -0.01, 0.01, -0.01, 0.01, -0.01}
	daily := StdDev(returns)
	assert.InDelta(t, daily*15.8745078664, AnnualizedVolatility(returns, 252), 1e-6)
}

func TestAnnualizedReturn(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "empty",
			returns:   nil,
			expected:  0,
			tolerance: 0,
		},
		{
			name:      "one year of small positive returns",
			returns:   repeat(0.001, 252),
			expected:  0.286,
			tolerance: 0.01,
		},
		{
			name:      "one year of small negative returns",
			returns:   repeat(-0.001, 252),
			expected:  -0.221,
			tolerance: 0.01,
		},
		{
			name:      "very short period stays cumulative",
			returns:   []float64{0.01, 0.02},
			expected:  0.0302,
			tolerance: 0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AnnualizedReturn(tt.returns, 252), tt.tolerance)
		})
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

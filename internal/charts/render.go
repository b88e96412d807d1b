// Package charts renders the frontier sweep as a PNG and manages the
// JSON/PNG artifacts written per run.
package charts

import (
	"errors"
	"fmt"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/aristath/frontier/internal/optimization"
)

const (
	chartWidth  = 800
	chartHeight = 600
)

// RenderFrontier draws the sweep with volatility on X and target
// return on Y, both in percent. The two anchor portfolios are carried
// in the subtitle.
func RenderFrontier(result *optimization.FrontierResult) ([]byte, error) {
	if result == nil || len(result.Frontier) < 2 {
		return nil, errors.New("not enough frontier points to render")
	}

	xLabels := make([]string, len(result.Frontier))
	returns := make([]float64, len(result.Frontier))
	yMin, yMax := result.Frontier[0].TargetReturn*100, result.Frontier[0].TargetReturn*100

	for i, point := range result.Frontier {
		xLabels[i] = fmt.Sprintf("%.1f%%", point.Volatility*100)
		returns[i] = point.TargetReturn * 100
		if returns[i] < yMin {
			yMin = returns[i]
		}
		if returns[i] > yMax {
			yMax = returns[i]
		}
	}

	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 1
	}
	yMin -= pad
	yMax += pad

	subtitle := fmt.Sprintf(
		"Max Sharpe %.2f (ret %.1f%%, vol %.1f%%) / Min Vol (ret %.1f%%, vol %.1f%%)",
		result.MaxSharpe.SharpeRatio,
		result.MaxSharpe.Performance.Return*100,
		result.MaxSharpe.Performance.Volatility*100,
		result.MinVolatility.Performance.Return*100,
		result.MinVolatility.Performance.Volatility*100,
	)

	painter, err := charts.LineRender([][]float64{returns},
		charts.TitleTextOptionFunc("Efficient Frontier", subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: 10,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render frontier chart: %w", err)
	}

	return painter.Bytes()
}

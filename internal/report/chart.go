package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
)

// ErrTooShort is returned when a curve has too few points to plot.
var ErrTooShort = errors.New("report: need at least two ticks to chart")

// Chart size in pixels.
const (
	ChartWidth  = 1000
	ChartHeight = 700
)

// RenderChart writes a PNG line chart of the actual fire-area curve against
// the ideal curve.
func RenderChart(w io.Writer, history []int, ideal []float64) error {
	if len(history) < 2 {
		return ErrTooShort
	}

	actual := make([]float64, len(history))
	peak := 1.0
	for i, v := range history {
		actual[i] = float64(v)
		peak = max(peak, actual[i])
	}
	for _, v := range ideal {
		peak = max(peak, v)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Actual",
			XValues: tickSeries(len(actual)),
			YValues: actual,
			Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 3.0},
		},
	}
	if len(ideal) >= 2 {
		series = append(series, chart.ContinuousSeries{
			Name:    "Ideal",
			XValues: tickSeries(len(ideal)),
			YValues: ideal,
			Style: chart.Style{
				StrokeColor:     chart.ColorGreen,
				StrokeWidth:     2.0,
				StrokeDashArray: []float64{6.0, 4.0},
			},
		})
	}

	xMax := float64(max(len(actual), len(ideal)) - 1)
	graph := chart.Chart{
		Title:  "Fire area per tick",
		Width:  ChartWidth,
		Height: ChartHeight,
		XAxis: chart.XAxis{
			Name:  "tick",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: xMax},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "burning cells",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: peak},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func tickSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

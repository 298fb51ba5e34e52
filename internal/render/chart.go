package render

import (
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"bioevo/internal/model"
)

// Series is one named line.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// LineChart is a titled set of series rendered as a PNG.
type LineChart struct {
	Title  string
	XLabel string
	YLabel string
	Width  int
	Height int
	Series []Series
}

var seriesColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	{R: 255, G: 165, B: 0, A: 255},
	chart.ColorBlack,
}

func (c LineChart) validate() error {
	if len(c.Series) == 0 {
		return fmt.Errorf("chart %q has no series", c.Title)
	}
	for _, s := range c.Series {
		if len(s.X) == 0 || len(s.X) != len(s.Y) {
			return fmt.Errorf("series %q: x has %d values, y has %d", s.Name, len(s.X), len(s.Y))
		}
	}
	return nil
}

// Render writes the chart as PNG.
func (c LineChart) Render(w io.Writer) error {
	if err := c.validate(); err != nil {
		return err
	}
	width, height := c.Width, c.Height
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 400
	}

	series := make([]chart.Series, 0, len(c.Series))
	var xs, ys [][]float64
	for i, s := range c.Series {
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: s.Y,
			Style: chart.Style{
				StrokeColor: seriesColors[i%len(seriesColors)],
				StrokeWidth: 2.0,
			},
		})
		xs = append(xs, s.X)
		ys = append(ys, s.Y)
	}
	xMin, xMax := paddedRange(xs...)
	yMin, yMax := paddedRange(ys...)

	graph := chart.Chart{
		Title:  c.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  c.XLabel,
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:  c.YLabel,
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}
	return graph.Render(chart.PNG, w)
}

// WriteLineChart renders the chart to path.
func WriteLineChart(path string, c LineChart) error {
	return writeFile(path, c.Render)
}

// paddedRange spans every finite value; a degenerate span is widened so the
// axis has a non-zero delta.
func paddedRange(values ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, vs := range values {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if span := hi - lo; span < 1e-12 {
		pad := math.Max(math.Abs(lo)*0.05, 0.5)
		return lo - pad, hi + pad
	}
	return lo, hi
}

// FitnessChart plots best-so-far and per-generation best MSE.
func FitnessChart(history []model.GenerationStats) LineChart {
	gens := make([]float64, len(history))
	bestSoFar := make([]float64, len(history))
	best := make([]float64, len(history))
	for i, st := range history {
		gens[i] = float64(st.Generation)
		bestSoFar[i] = st.BestSoFarMSE
		best[i] = st.BestMSE
	}
	return LineChart{
		Title:  "Fitness",
		XLabel: "generation",
		YLabel: "MSE",
		Series: []Series{
			{Name: "best so far", X: gens, Y: bestSoFar},
			{Name: "generation best", X: gens, Y: best},
		},
	}
}

// Package render draws tissue patterns, run curves and coupled-tissue
// animations.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"bioevo/internal/model"
)

const paletteSize = 255

// Panel is one titled heatmap.
type Panel struct {
	Title   string
	Pattern model.Pattern
}

// patternGrid exposes a Pattern as a plotter.GridXYZ with row 0 at the top.
type patternGrid struct {
	p model.Pattern
}

func (g patternGrid) Dims() (c, r int) { return g.p.Cols(), g.p.Rows() }

func (g patternGrid) Z(c, r int) float64 { return g.p.At(g.p.Rows()-1-r, c) }

func (g patternGrid) X(c int) float64 { return float64(c) }

func (g patternGrid) Y(r int) float64 { return float64(r) }

// SharedRange returns the min and max over all finite values of the
// patterns, widened when they coincide.
func SharedRange(patterns ...model.Pattern) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range patterns {
		for _, v := range p.Values {
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
	if hi-lo < 1e-12 {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func colorMap(lo, hi float64) palette.DivergingColorMap {
	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)
	cm.SetConvergePoint((lo + hi) / 2)
	return cm
}

// PatternPanels draws the panels side by side on a common colour scale and
// writes a PNG.
func PatternPanels(w io.Writer, panels []Panel) error {
	if len(panels) == 0 {
		return fmt.Errorf("at least one panel is required")
	}
	patterns := make([]model.Pattern, 0, len(panels))
	for i, p := range panels {
		if err := p.Pattern.Validate(); err != nil {
			return fmt.Errorf("panel %d: %w", i, err)
		}
		patterns = append(patterns, p.Pattern)
	}
	lo, hi := SharedRange(patterns...)
	pal := colorMap(lo, hi).Palette(paletteSize)

	row := make([]*plot.Plot, len(panels))
	for i, panel := range panels {
		p := plot.New()
		p.Title.Text = panel.Title
		p.X.Label.Text = "col"
		p.Y.Label.Text = "row"
		hm := plotter.NewHeatMap(patternGrid{p: panel.Pattern}, pal)
		hm.Min, hm.Max = lo, hi
		hm.NaN = color.Black
		p.Add(hm)
		row[i] = p
	}

	const side = 3 * vg.Inch
	img := vgimg.New(vg.Length(len(panels))*side, side)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(panels),
		PadX:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}

	png := vgimg.PngCanvas{Canvas: img}
	_, err := png.WriteTo(w)
	return err
}

// WritePatternPanels writes PatternPanels output to path.
func WritePatternPanels(path string, panels []Panel) error {
	return writeFile(path, func(w io.Writer) error { return PatternPanels(w, panels) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

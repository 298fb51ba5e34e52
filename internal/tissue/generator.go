// Package tissue evaluates the cell model across a grid of cells with a
// per-cell decay multiplier, optionally coupled by nearest-neighbour diffusion.
package tissue

import (
	"context"
	"fmt"
	"math"

	"bioevo/internal/cell"
	"bioevo/internal/model"
)

// PatternGenerator produces a tissue pattern for a parameter vector.
type PatternGenerator interface {
	Name() string
	Shape() []int
	Generate(ctx context.Context, p model.Params) (model.Pattern, error)
}

// FrameSink receives intermediate voltage fields from the coupled variant.
type FrameSink func(step int, t float64, v model.Pattern) error

type Config struct {
	Rows int
	Cols int
	// OneD emits a [cols] pattern; requires Rows == 1.
	OneD    bool
	Grid    cell.TimeGrid
	Initial cell.State
	// RateScale multiplies every cell's k3 before the rule multiplier.
	RateScale float64
	Rule      Rule
	// Coupling > 0 selects the diffusion-coupled explicit Euler variant.
	Coupling   float64
	Integrator cell.Integrator
}

type Generator struct {
	cfg         Config
	multipliers []float64
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Rows <= 0 || cfg.Cols <= 0 {
		return nil, fmt.Errorf("tissue dimensions must be > 0, got %dx%d", cfg.Rows, cfg.Cols)
	}
	if cfg.OneD && cfg.Rows != 1 {
		return nil, fmt.Errorf("1D tissue requires rows == 1, got %d", cfg.Rows)
	}
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateScale == 0 {
		cfg.RateScale = 1
	}
	if cfg.RateScale < 0 || math.IsNaN(cfg.RateScale) || math.IsInf(cfg.RateScale, 0) {
		return nil, fmt.Errorf("rate scale must be finite and > 0, got %v", cfg.RateScale)
	}
	if cfg.Coupling < 0 || math.IsNaN(cfg.Coupling) || math.IsInf(cfg.Coupling, 0) {
		return nil, fmt.Errorf("coupling must be finite and >= 0, got %v", cfg.Coupling)
	}
	if cfg.Rule == nil {
		cfg.Rule = Uniform(1)
	}

	multipliers := make([]float64, cfg.Rows*cfg.Cols)
	for r := 0; r < cfg.Rows; r++ {
		for c := 0; c < cfg.Cols; c++ {
			m := cfg.Rule(r, c, cfg.Rows, cfg.Cols)
			if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 {
				return nil, fmt.Errorf("rule produced invalid multiplier %v at (%d,%d)", m, r, c)
			}
			multipliers[r*cfg.Cols+c] = m
		}
	}
	return &Generator{cfg: cfg, multipliers: multipliers}, nil
}

func (g *Generator) Name() string {
	if g.cfg.Coupling > 0 {
		return "tissue_coupled"
	}
	return "tissue"
}

func (g *Generator) Shape() []int {
	if g.cfg.OneD {
		return []int{g.cfg.Cols}
	}
	return []int{g.cfg.Rows, g.cfg.Cols}
}

func (g *Generator) Config() Config {
	return g.cfg
}

// Multipliers returns the per-cell k3 multiplier map.
func (g *Generator) Multipliers() model.Pattern {
	p := g.newPattern()
	copy(p.Values, g.multipliers)
	return p
}

func (g *Generator) newPattern() model.Pattern {
	if g.cfg.OneD {
		return model.NewSequence(g.cfg.Cols)
	}
	return model.NewGrid(g.cfg.Rows, g.cfg.Cols)
}

// Generate returns the final voltage of every cell.
func (g *Generator) Generate(ctx context.Context, p model.Params) (model.Pattern, error) {
	if g.cfg.Coupling > 0 {
		return g.generateCoupled(ctx, p, 0, nil)
	}
	return g.generateIndependent(ctx, p)
}

// GenerateFrames runs the coupled variant and reports the voltage field
// every `every` steps (plus the initial and final fields).
func (g *Generator) GenerateFrames(ctx context.Context, p model.Params, every int, sink FrameSink) (model.Pattern, error) {
	if g.cfg.Coupling <= 0 {
		return model.Pattern{}, fmt.Errorf("frames require a coupled tissue (coupling > 0)")
	}
	if every <= 0 {
		every = 1
	}
	return g.generateCoupled(ctx, p, every, sink)
}

func (g *Generator) generateIndependent(ctx context.Context, p model.Params) (model.Pattern, error) {
	base := cell.RatesFromParams(p).WithDecayScale(g.cfg.RateScale)
	out := g.newPattern()
	// cells sharing a multiplier have identical trajectories
	byMultiplier := make(map[float64]float64)
	for i, m := range g.multipliers {
		if v, ok := byMultiplier[m]; ok {
			out.Values[i] = v
			continue
		}
		if err := ctx.Err(); err != nil {
			return model.Pattern{}, err
		}
		final, err := g.cfg.Integrator.Final(base.WithDecayScale(m), g.cfg.Initial, g.cfg.Grid)
		if err != nil {
			return model.Pattern{}, fmt.Errorf("cell %d: %w", i, err)
		}
		byMultiplier[m] = final.V
		out.Values[i] = final.V
	}
	return out, nil
}

func (g *Generator) generateCoupled(ctx context.Context, p model.Params, every int, sink FrameSink) (model.Pattern, error) {
	base := cell.RatesFromParams(p).WithDecayScale(g.cfg.RateScale)
	rows, cols := g.cfg.Rows, g.cfg.Cols
	n := rows * cols
	cur := make([]cell.State, n)
	next := make([]cell.State, n)
	rates := make([]cell.Rates, n)
	for i := range cur {
		cur[i] = g.cfg.Initial
		rates[i] = base.WithDecayScale(g.multipliers[i])
	}

	emit := func(step int, t float64) error {
		if sink == nil {
			return nil
		}
		frame := g.newPattern()
		for i := range cur {
			frame.Values[i] = cur[i].V
		}
		return sink(step, t, frame)
	}
	if err := emit(0, g.cfg.Grid.At(0)); err != nil {
		return model.Pattern{}, err
	}

	dt := g.cfg.Grid.Step()
	last := g.cfg.Grid.Points - 1
	for step := 1; step <= last; step++ {
		if err := ctx.Err(); err != nil {
			return model.Pattern{}, err
		}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				i := r*cols + c
				sum, count := cur[i].V, 1
				if r > 0 {
					sum += cur[i-cols].V
					count++
				}
				if r < rows-1 {
					sum += cur[i+cols].V
					count++
				}
				if c > 0 {
					sum += cur[i-1].V
					count++
				}
				if c < cols-1 {
					sum += cur[i+1].V
					count++
				}
				diffusion := g.cfg.Coupling * (sum/float64(count) - cur[i].V)
				s := cell.EulerStep(rates[i], cur[i], dt, diffusion)
				if math.IsNaN(s.V) || math.IsInf(s.V, 0) || math.IsNaN(s.X) || math.IsInf(s.X, 0) {
					return model.Pattern{}, fmt.Errorf("cell %d: %w: t=%.6g", i, cell.ErrNonFinite, g.cfg.Grid.At(step))
				}
				next[i] = s
			}
		}
		cur, next = next, cur
		if every > 0 && (step%every == 0 || step == last) {
			if err := emit(step, g.cfg.Grid.At(step)); err != nil {
				return model.Pattern{}, err
			}
		}
	}

	out := g.newPattern()
	for i := range cur {
		out.Values[i] = cur[i].V
	}
	return out, nil
}

// Package fitness scores parameter vectors by the mean squared error between
// the pattern they generate and a fixed target. Lower is better.
package fitness

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"bioevo/internal/cell"
	"bioevo/internal/model"
	"bioevo/internal/tissue"
)

var ErrShapeMismatch = errors.New("pattern shape mismatch")

type Options struct {
	// TileTarget repeats a 1D target across every row of a 2D generator.
	TileTarget bool
}

type Evaluator struct {
	gen    tissue.PatternGenerator
	target model.Pattern
	bounds model.Bounds
}

func NewEvaluator(gen tissue.PatternGenerator, target model.Pattern, bounds model.Bounds, opts Options) (*Evaluator, error) {
	if gen == nil {
		return nil, fmt.Errorf("pattern generator is required")
	}
	if err := bounds.Check(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if idx := target.Finite(); idx >= 0 {
		return nil, fmt.Errorf("target: %w at index %d", cell.ErrNonFinite, idx)
	}

	want := gen.Shape()
	if opts.TileTarget && target.Dims() == 1 && len(want) == 2 {
		tiled, err := TileRows(target, want[0])
		if err != nil {
			return nil, err
		}
		target = tiled
	}
	if !sameShape(target.Shape, want) {
		return nil, fmt.Errorf("%w: target %v, generator %v", ErrShapeMismatch, target.Shape, want)
	}
	return &Evaluator{gen: gen, target: target.Clone(), bounds: bounds}, nil
}

// Target returns a copy of the (possibly tiled) target.
func (e *Evaluator) Target() model.Pattern {
	return e.target.Clone()
}

func (e *Evaluator) Bounds() model.Bounds {
	return e.bounds
}

func (e *Evaluator) Generator() tissue.PatternGenerator {
	return e.gen
}

// Evaluate returns the MSE of p. It is safe for concurrent use provided the
// generator is.
func (e *Evaluator) Evaluate(ctx context.Context, p model.Params) (float64, error) {
	mse, _, err := e.EvaluatePattern(ctx, p)
	return mse, err
}

// EvaluatePattern also returns the generated pattern.
func (e *Evaluator) EvaluatePattern(ctx context.Context, p model.Params) (float64, model.Pattern, error) {
	if err := e.bounds.Validate(p); err != nil {
		return 0, model.Pattern{}, err
	}
	pattern, err := e.gen.Generate(ctx, p)
	if err != nil {
		return 0, model.Pattern{}, err
	}
	if idx := pattern.Finite(); idx >= 0 {
		return 0, model.Pattern{}, fmt.Errorf("%w: cell %d for %s", cell.ErrNonFinite, idx, p)
	}
	mse, err := MSE(pattern, e.target)
	if err != nil {
		return 0, model.Pattern{}, err
	}
	return mse, pattern, nil
}

// MSE is the mean squared difference over the row-major flattening.
func MSE(got, want model.Pattern) (float64, error) {
	if !got.SameShape(want) {
		return 0, fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, got.Shape, want.Shape)
	}
	n := len(got.Values)
	if n == 0 {
		return 0, fmt.Errorf("%w: empty pattern", ErrShapeMismatch)
	}
	diff := make([]float64, n)
	floats.SubTo(diff, got.Values, want.Values)
	return floats.Dot(diff, diff) / float64(n), nil
}

// TileRows repeats a 1D pattern of length cols into a [rows, cols] grid.
func TileRows(p model.Pattern, rows int) (model.Pattern, error) {
	if p.Dims() != 1 {
		return model.Pattern{}, fmt.Errorf("%w: tile requires a 1D pattern, got %v", ErrShapeMismatch, p.Shape)
	}
	if rows <= 0 {
		return model.Pattern{}, fmt.Errorf("tile rows must be > 0, got %d", rows)
	}
	cols := p.Len()
	out := model.NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		copy(out.Values[r*cols:(r+1)*cols], p.Values)
	}
	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

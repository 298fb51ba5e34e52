package evo

import (
	"context"

	"bioevo/internal/model"
)

// Individual is a parameter vector with a cached fitness. Fitness is only
// meaningful while Valid is set; variation clears it.
type Individual struct {
	Params  model.Params
	Fitness float64
	Valid   bool
}

// Evaluator scores params; lower is better. Implementations must be safe for
// concurrent use.
type Evaluator interface {
	Evaluate(ctx context.Context, p model.Params) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, p model.Params) (float64, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, p model.Params) (float64, error) {
	return f(ctx, p)
}

func invalidate(ind *Individual) {
	ind.Valid = false
	ind.Fitness = 0
}

func clonePopulation(pop []Individual) []Individual {
	out := make([]Individual, len(pop))
	copy(out, pop)
	return out
}

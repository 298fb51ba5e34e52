package evo

import (
	"fmt"
	"math/rand"

	"bioevo/internal/model"
)

// Crossover recombines two parents into two children.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, a, b model.Params) (model.Params, model.Params)
}

// Mutator perturbs one individual's genes.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, p model.Params) model.Params
}

// BlendCrossover draws gamma = (1+2*Alpha)*u - Alpha per gene and mixes the
// parents linearly, so children may fall outside the parents' span.
type BlendCrossover struct {
	Alpha float64
}

func (BlendCrossover) Name() string {
	return "blend"
}

func (c BlendCrossover) Cross(rng *rand.Rand, a, b model.Params) (model.Params, model.Params) {
	x1, x2 := a.Slice(), b.Slice()
	for i := range x1 {
		gamma := (1+2*c.Alpha)*rng.Float64() - c.Alpha
		v1, v2 := x1[i], x2[i]
		x1[i] = (1-gamma)*v1 + gamma*v2
		x2[i] = gamma*v1 + (1-gamma)*v2
	}
	return model.Params{K1: x1[0], K2: x1[1], K3: x1[2]}, model.Params{K1: x2[0], K2: x2[1], K3: x2[2]}
}

// GaussianMutation adds N(Mu, Sigma) to each gene with probability Indpb.
type GaussianMutation struct {
	Mu    float64
	Sigma float64
	Indpb float64
}

func (GaussianMutation) Name() string {
	return "gaussian"
}

func (m GaussianMutation) Mutate(rng *rand.Rand, p model.Params) model.Params {
	genes := p.Slice()
	for i := range genes {
		if rng.Float64() < m.Indpb {
			genes[i] += m.Mu + m.Sigma*rng.NormFloat64()
		}
	}
	return model.Params{K1: genes[0], K2: genes[1], K3: genes[2]}
}

// Toolbox bundles the operators and search box used by a run.
type Toolbox struct {
	Bounds    model.Bounds
	Select    Selector
	Crossover Crossover
	Mutate    Mutator
}

// DefaultToolbox is tournament(3), blend(0.5) and gaussian(0, 0.2, 0.2).
func DefaultToolbox(bounds model.Bounds) Toolbox {
	return Toolbox{
		Bounds:    bounds,
		Select:    TournamentSelector{Size: 3},
		Crossover: BlendCrossover{Alpha: 0.5},
		Mutate:    GaussianMutation{Mu: 0, Sigma: 0.2, Indpb: 0.2},
	}
}

func (t Toolbox) validate(variant Variant) error {
	if err := t.Bounds.Check(); err != nil {
		return err
	}
	if t.Select == nil {
		return fmt.Errorf("selector is required")
	}
	if variant == VariantEASimple {
		if t.Crossover == nil {
			return fmt.Errorf("crossover operator is required for %s", variant)
		}
		if t.Mutate == nil {
			return fmt.Errorf("mutation operator is required for %s", variant)
		}
	}
	return nil
}

// Vary applies pairwise crossover with probability cxpb to (0,1), (2,3), ...
// and then mutation with probability mutpb to every offspring. Touched
// offspring are clipped to bounds and invalidated.
func (t Toolbox) Vary(rng *rand.Rand, offspring []Individual, cxpb, mutpb float64) []Individual {
	out := clonePopulation(offspring)
	for i := 1; i < len(out); i += 2 {
		if rng.Float64() < cxpb {
			a, b := t.Crossover.Cross(rng, out[i-1].Params, out[i].Params)
			out[i-1].Params = t.Bounds.Clip(a)
			out[i].Params = t.Bounds.Clip(b)
			invalidate(&out[i-1])
			invalidate(&out[i])
		}
	}
	for i := range out {
		if rng.Float64() < mutpb {
			out[i].Params = t.Bounds.Clip(t.Mutate.Mutate(rng, out[i].Params))
			invalidate(&out[i])
		}
	}
	return out
}

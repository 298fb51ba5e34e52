package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"bioevo/internal/model"
)

// HillClimber perturbs one gene at a time within bounds and keeps strict
// improvements larger than MinImprovement.
type HillClimber struct {
	Rand              *rand.Rand
	Steps             int
	StepSize          float64
	PerturbationRange float64
	AnnealingFactor   float64
	MinImprovement    float64
	mu                sync.Mutex
}

func (h *HillClimber) Name() string {
	return "hill_climb"
}

func (h *HillClimber) Tune(ctx context.Context, p model.Params, bounds model.Bounds, attempts int, fitness FitnessFn) (model.Params, TuneReport, error) {
	report := TuneReport{AttemptsPlanned: attempts}
	if err := ctx.Err(); err != nil {
		return model.Params{}, report, err
	}
	if h == nil || h.Rand == nil {
		return model.Params{}, report, errors.New("random source is required")
	}
	if h.Steps <= 0 {
		return model.Params{}, report, errors.New("steps must be > 0")
	}
	if h.StepSize <= 0 {
		return model.Params{}, report, errors.New("step size must be > 0")
	}
	if h.PerturbationRange < 0 {
		return model.Params{}, report, errors.New("perturbation range must be >= 0")
	}
	if h.AnnealingFactor < 0 {
		return model.Params{}, report, errors.New("annealing factor must be >= 0")
	}
	if h.MinImprovement < 0 {
		return model.Params{}, report, errors.New("min improvement must be >= 0")
	}
	if fitness == nil {
		return model.Params{}, report, errors.New("fitness function is required")
	}
	if err := bounds.Validate(p); err != nil {
		return model.Params{}, report, err
	}

	bestFitness, err := fitness(ctx, p)
	if err != nil {
		return model.Params{}, report, err
	}
	report.CandidateEvaluations++
	report.StartFitness = bestFitness
	report.FinalFitness = bestFitness
	if attempts <= 0 {
		return p, report, nil
	}

	perturbationRange := h.PerturbationRange
	if perturbationRange == 0 {
		perturbationRange = 1.0
	}
	annealingFactor := h.AnnealingFactor
	if annealingFactor == 0 {
		annealingFactor = 1.0
	}

	best := p
	for a := 0; a < attempts; a++ {
		candidate, err := h.perturb(ctx, best, bounds, perturbationRange, annealingFactor)
		if err != nil {
			return model.Params{}, report, err
		}
		candidateFitness, err := fitness(ctx, candidate)
		report.AttemptsExecuted++
		report.CandidateEvaluations++
		if err != nil {
			return model.Params{}, report, err
		}
		if candidateFitness < bestFitness-h.MinImprovement {
			best = candidate
			bestFitness = candidateFitness
			report.AcceptedCandidates++
			continue
		}
		report.RejectedCandidates++
	}
	report.FinalFitness = bestFitness
	return best, report, nil
}

func (h *HillClimber) perturb(ctx context.Context, base model.Params, bounds model.Bounds, perturbationRange, annealingFactor float64) (model.Params, error) {
	genes := base.Slice()
	for s := 0; s < h.Steps; s++ {
		if err := ctx.Err(); err != nil {
			return model.Params{}, err
		}
		idx := h.randIntn(len(genes))
		spread := h.StepSize * perturbationRange * math.Pow(annealingFactor, float64(s))
		genes[idx] += (h.randFloat64()*2 - 1) * spread
	}
	candidate, err := model.ParamsFromSlice(genes)
	if err != nil {
		return model.Params{}, err
	}
	return bounds.Clip(candidate), nil
}

func (h *HillClimber) randIntn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Rand.Intn(n)
}

func (h *HillClimber) randFloat64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Rand.Float64()
}

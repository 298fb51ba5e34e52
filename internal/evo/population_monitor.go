// Package evo fits the three rate constants with a generational evolutionary
// search. Fitness is an error score and lower is better throughout.
package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bioevo/internal/cell"
	"bioevo/internal/model"
	"bioevo/internal/tuning"
)

type Variant string

const (
	// VariantEASimple selects, then crosses and mutates the offspring.
	VariantEASimple Variant = "ea_simple"
	// VariantSelectOnly only resamples the population by selection.
	VariantSelectOnly Variant = "select_only"
)

func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case "", VariantEASimple:
		return VariantEASimple, nil
	case VariantSelectOnly:
		return VariantSelectOnly, nil
	default:
		return "", fmt.Errorf("unsupported variant: %s", name)
	}
}

type RunResult struct {
	// History has one row per generation. Refinement runs after the last
	// row, so the champion can beat History[len-1].BestSoFarMSE.
	History         []model.GenerationStats
	HallOfFame      []model.HallOfFameEntry
	FinalPopulation []Individual
	Evaluations     int
	Refinement      *tuning.TuneReport
}

// Best is the hall-of-fame champion.
func (r RunResult) Best() (model.HallOfFameEntry, bool) {
	if len(r.HallOfFame) == 0 {
		return model.HallOfFameEntry{}, false
	}
	return r.HallOfFame[0], true
}

type MonitorConfig struct {
	Evaluator      Evaluator
	Toolbox        Toolbox
	Variant        Variant
	PopulationSize int
	Generations    int
	EliteCount     int
	HallOfFameSize int
	CXPB           float64
	MUTPB          float64
	Workers        int
	Seed           int64
	// TolerateNonFinite scores individuals whose integration diverges as
	// +Inf instead of failing the run.
	TolerateNonFinite bool
	Tuner             tuning.Tuner
	RefineAttempts    int
	OnGeneration      func(model.GenerationStats)
}

type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	variant, err := ParseVariant(string(cfg.Variant))
	if err != nil {
		return nil, err
	}
	cfg.Variant = variant
	if err := cfg.Toolbox.validate(cfg.Variant); err != nil {
		return nil, err
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount >= cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size)")
	}
	if cfg.HallOfFameSize < 0 {
		return nil, fmt.Errorf("hall of fame size must be >= 0")
	}
	if cfg.HallOfFameSize == 0 {
		cfg.HallOfFameSize = 1
	}
	if cfg.CXPB < 0 || cfg.CXPB > 1 {
		return nil, fmt.Errorf("crossover probability must be in [0, 1]")
	}
	if cfg.MUTPB < 0 || cfg.MUTPB > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1]")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Tuner != nil && cfg.RefineAttempts < 0 {
		return nil, fmt.Errorf("refine attempts must be >= 0")
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// InitialPopulation draws every gene uniformly from the toolbox bounds.
func (m *PopulationMonitor) InitialPopulation() []model.Params {
	b := m.cfg.Toolbox.Bounds
	out := make([]model.Params, m.cfg.PopulationSize)
	for i := range out {
		out[i] = model.Params{
			K1: b.Lower + m.rng.Float64()*(b.Upper-b.Lower),
			K2: b.Lower + m.rng.Float64()*(b.Upper-b.Lower),
			K3: b.Lower + m.rng.Float64()*(b.Upper-b.Lower),
		}
	}
	return out
}

// Run evolves the population for the configured number of generations. A nil
// initial population is sampled from the bounds. The returned history has one
// entry for the initial population plus one per generation.
func (m *PopulationMonitor) Run(ctx context.Context, initial []model.Params) (RunResult, error) {
	if initial == nil {
		initial = m.InitialPopulation()
	}
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}
	population := make([]Individual, len(initial))
	for i, p := range initial {
		if err := m.cfg.Toolbox.Bounds.Validate(p); err != nil {
			return RunResult{}, fmt.Errorf("initial individual %d: %w", i, err)
		}
		population[i] = Individual{Params: p}
	}

	hof := NewHallOfFame(m.cfg.HallOfFameSize)
	history := make([]model.GenerationStats, 0, m.cfg.Generations+1)
	total := 0

	record := func(generation, evaluations int) error {
		hof.Update(population)
		stats, err := summarizeGeneration(population, generation, evaluations, hof)
		if err != nil {
			return err
		}
		history = append(history, stats)
		if m.cfg.OnGeneration != nil {
			m.cfg.OnGeneration(stats)
		}
		return nil
	}

	evaluations, err := m.evaluatePopulation(ctx, population)
	if err != nil {
		return RunResult{}, err
	}
	total += evaluations
	if err := record(0, evaluations); err != nil {
		return RunResult{}, err
	}

	for gen := 1; gen <= m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		population, evaluations, err = m.nextGeneration(ctx, population)
		if err != nil {
			return RunResult{}, err
		}
		total += evaluations
		if err := record(gen, evaluations); err != nil {
			return RunResult{}, err
		}
	}

	result := RunResult{
		History:         history,
		FinalPopulation: clonePopulation(population),
		Evaluations:     total,
	}
	if m.cfg.Tuner != nil && m.cfg.RefineAttempts > 0 {
		report, err := m.refineChampion(ctx, hof)
		if err != nil {
			return RunResult{}, err
		}
		result.Refinement = &report
		result.Evaluations += report.CandidateEvaluations
	}
	result.HallOfFame = hof.Entries()
	return result, nil
}

func (m *PopulationMonitor) nextGeneration(ctx context.Context, population []Individual) ([]Individual, int, error) {
	elites := rankPopulation(population)[:m.cfg.EliteCount]
	offspring, err := m.cfg.Toolbox.Select.Select(m.rng, population, len(population)-len(elites))
	if err != nil {
		return nil, 0, fmt.Errorf("select: %w", err)
	}
	if m.cfg.Variant == VariantEASimple {
		offspring = m.cfg.Toolbox.Vary(m.rng, offspring, m.cfg.CXPB, m.cfg.MUTPB)
	}
	evaluations, err := m.evaluatePopulation(ctx, offspring)
	if err != nil {
		return nil, 0, err
	}
	next := make([]Individual, 0, len(population))
	next = append(next, elites...)
	next = append(next, offspring...)
	return next, evaluations, nil
}

// evaluatePopulation scores every invalid individual in place and returns how
// many were evaluated. Workers write disjoint indices only.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []Individual) (int, error) {
	pending := make([]int, 0, len(population))
	for i := range population {
		if !population[i].Valid {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	workerCount := m.cfg.Workers
	if workerCount > len(pending) {
		workerCount = len(pending)
	}
	fitness := make([]float64, len(population))
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(workerCount)
	for _, idx := range pending {
		params := population[idx].Params
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := m.score(ctx, params)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", params, err)
			}
			fitness[idx] = f
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return 0, err
	}
	for _, idx := range pending {
		population[idx].Fitness = fitness[idx]
		population[idx].Valid = true
	}
	return len(pending), nil
}

// score evaluates p, mapping a diverged integration to +Inf when tolerated.
func (m *PopulationMonitor) score(ctx context.Context, p model.Params) (float64, error) {
	f, err := m.cfg.Evaluator.Evaluate(ctx, p)
	if err != nil && m.cfg.TolerateNonFinite && errors.Is(err, cell.ErrNonFinite) {
		return math.Inf(1), nil
	}
	return f, err
}

func (m *PopulationMonitor) refineChampion(ctx context.Context, hof *HallOfFame) (tuning.TuneReport, error) {
	champion, ok := hof.Best()
	if !ok {
		return tuning.TuneReport{}, fmt.Errorf("no champion to refine")
	}
	tuned, report, err := m.cfg.Tuner.Tune(ctx, champion.Params, m.cfg.Toolbox.Bounds, m.cfg.RefineAttempts, m.score)
	if err != nil {
		return tuning.TuneReport{}, fmt.Errorf("refine champion: %w", err)
	}
	if report.FinalFitness < champion.Fitness {
		hof.Update([]Individual{{Params: tuned, Fitness: report.FinalFitness, Valid: true}})
	}
	return report, nil
}

func rankPopulation(population []Individual) []Individual {
	ranked := clonePopulation(population)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness < ranked[j].Fitness
	})
	return ranked
}

func summarizeGeneration(population []Individual, generation, evaluations int, hof *HallOfFame) (model.GenerationStats, error) {
	values := make([]float64, 0, len(population))
	bestIdx := -1
	for i, ind := range population {
		if math.IsInf(ind.Fitness, 0) || math.IsNaN(ind.Fitness) {
			continue
		}
		values = append(values, ind.Fitness)
		if bestIdx < 0 || ind.Fitness < population[bestIdx].Fitness {
			bestIdx = i
		}
	}
	if len(values) == 0 {
		return model.GenerationStats{}, fmt.Errorf("generation %d: %w for every individual", generation, cell.ErrNonFinite)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	champion, _ := hof.Best()
	return model.GenerationStats{
		Generation:   generation,
		Evaluations:  evaluations,
		BestMSE:      population[bestIdx].Fitness,
		MeanMSE:      mean,
		StdMSE:       std,
		MaxMSE:       floats.Max(values),
		BestSoFarMSE: champion.Fitness,
		Best:         population[bestIdx].Params,
		Rejected:     len(population) - len(values),
	}, nil
}

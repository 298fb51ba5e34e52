// Package platform owns the store, the generator registry and the set of
// active fitting runs.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bioevo/internal/evo"
	"bioevo/internal/fitness"
	"bioevo/internal/model"
	"bioevo/internal/storage"
	"bioevo/internal/tissue"
	"bioevo/internal/tuning"
)

// ErrRunStopped is the cancellation cause of a run ended by StopRun or Stop.
var ErrRunStopped = errors.New("run stopped")

type Config struct {
	Store storage.Store
}

// GeneratorFactory builds a pattern generator from a tissue spec.
type GeneratorFactory func(spec tissue.Spec) (tissue.PatternGenerator, error)

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

type EvolutionConfig struct {
	RunID      string
	TargetPath string
	Evaluator  *fitness.Evaluator
	// Instrument optionally wraps the evaluator seen by the monitor.
	Instrument        func(evo.Evaluator) evo.Evaluator
	Toolbox           evo.Toolbox
	Variant           evo.Variant
	PopulationSize    int
	Generations       int
	EliteCount        int
	HallOfFameSize    int
	CXPB              float64
	MUTPB             float64
	Workers           int
	Seed              int64
	TolerateNonFinite bool
	Tuner             tuning.Tuner
	RefineAttempts    int
	Initial           []model.Params
	OnGeneration      func(model.GenerationStats)
}

type EvolutionResult struct {
	evo.RunResult
	Champion     model.HallOfFameEntry
	BestPattern  model.Pattern
	CreatedAtUTC string
}

type Polis struct {
	store storage.Store

	mu sync.RWMutex

	generators     map[string]GeneratorFactory
	started        bool
	lastStopReason StopReason
	runs           map[string]context.CancelCauseFunc
}

func NewPolis(cfg Config) *Polis {
	return &Polis{
		store:          cfg.Store,
		generators:     make(map[string]GeneratorFactory),
		runs:           make(map[string]context.CancelCauseFunc),
		lastStopReason: StopReasonNormal,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *Polis) Store() storage.Store {
	return p.store
}

func (p *Polis) RegisterGenerator(name string, factory GeneratorFactory) error {
	if name == "" {
		return fmt.Errorf("generator name is required")
	}
	if factory == nil {
		return fmt.Errorf("generator factory is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	p.generators[name] = factory
	return nil
}

func (p *Polis) BuildGenerator(name string, spec tissue.Spec) (tissue.PatternGenerator, error) {
	p.mu.RLock()
	factory, ok := p.generators[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("generator not registered: %s", name)
	}
	return factory(spec)
}

func (p *Polis) RegisteredGenerators() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.generators))
	for name := range p.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Polis) Stop() {
	_ = p.StopWithReason(StopReasonNormal)
}

func (p *Polis) Shutdown() {
	_ = p.StopWithReason(StopReasonShutdown)
}

// StopWithReason cancels every active run and clears the registry.
func (p *Polis) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if reason != StopReasonNormal && reason != StopReasonShutdown {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.runs {
		cancel(ErrRunStopped)
	}
	p.started = false
	p.lastStopReason = reason
	p.generators = make(map[string]GeneratorFactory)
	p.runs = make(map[string]context.CancelCauseFunc)
	return nil
}

// RunEvolution fits params against the evaluator's target and persists the
// run record, generation stats, hall of fame and the target and champion
// patterns.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.Evaluator == nil {
		return EvolutionResult{}, fmt.Errorf("evaluator is required")
	}
	if cfg.Initial != nil && len(cfg.Initial) != cfg.PopulationSize {
		return EvolutionResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(cfg.Initial), cfg.PopulationSize)
	}
	if cfg.RunID == "" {
		return EvolutionResult{}, fmt.Errorf("run id is required")
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if err := p.registerRun(cfg.RunID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(cfg.RunID)

	var evaluator evo.Evaluator = cfg.Evaluator
	if cfg.Instrument != nil {
		evaluator = cfg.Instrument(evaluator)
	}
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Evaluator:         evaluator,
		Toolbox:           cfg.Toolbox,
		Variant:           cfg.Variant,
		PopulationSize:    cfg.PopulationSize,
		Generations:       cfg.Generations,
		EliteCount:        cfg.EliteCount,
		HallOfFameSize:    cfg.HallOfFameSize,
		CXPB:              cfg.CXPB,
		MUTPB:             cfg.MUTPB,
		Workers:           cfg.Workers,
		Seed:              cfg.Seed,
		TolerateNonFinite: cfg.TolerateNonFinite,
		Tuner:             cfg.Tuner,
		RefineAttempts:    cfg.RefineAttempts,
		OnGeneration:      cfg.OnGeneration,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	result, err := monitor.Run(runCtx, cfg.Initial)
	if err != nil {
		if cause := context.Cause(runCtx); errors.Is(cause, ErrRunStopped) {
			return EvolutionResult{}, fmt.Errorf("%w: %s", ErrRunStopped, cfg.RunID)
		}
		return EvolutionResult{}, err
	}
	champion, ok := result.Best()
	if !ok {
		return EvolutionResult{}, fmt.Errorf("run %s produced no champion", cfg.RunID)
	}
	bestFitness, bestPattern, err := cfg.Evaluator.EvaluatePattern(ctx, champion.Params)
	if err != nil {
		return EvolutionResult{}, fmt.Errorf("re-evaluate champion: %w", err)
	}
	champion.Fitness = bestFitness

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := p.persist(ctx, cfg, result, champion, bestPattern, createdAt); err != nil {
		return EvolutionResult{}, err
	}
	return EvolutionResult{
		RunResult:    result,
		Champion:     champion,
		BestPattern:  bestPattern,
		CreatedAtUTC: createdAt,
	}, nil
}

func (p *Polis) persist(ctx context.Context, cfg EvolutionConfig, result evo.RunResult, champion model.HallOfFameEntry, best model.Pattern, createdAt string) error {
	if err := p.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              cfg.RunID,
		Generator:       cfg.Evaluator.Generator().Name(),
		Variant:         string(cfg.Variant),
		TargetPath:      cfg.TargetPath,
		PopulationSize:  cfg.PopulationSize,
		Generations:     cfg.Generations,
		Seed:            cfg.Seed,
		Bounds:          cfg.Evaluator.Bounds(),
		BestParams:      champion.Params,
		BestFitness:     champion.Fitness,
		CreatedAtUTC:    createdAt,
	}); err != nil {
		return err
	}
	if err := p.store.SaveGenerationStats(ctx, cfg.RunID, result.History); err != nil {
		return err
	}
	if err := p.store.SaveHallOfFame(ctx, cfg.RunID, result.HallOfFame); err != nil {
		return err
	}
	if err := p.store.SavePattern(ctx, model.PatternRecord{
		VersionedRecord: storage.CurrentVersion(),
		Name:            TargetPatternName(cfg.RunID),
		Pattern:         cfg.Evaluator.Target(),
	}); err != nil {
		return err
	}
	return p.store.SavePattern(ctx, model.PatternRecord{
		VersionedRecord: storage.CurrentVersion(),
		Name:            BestPatternName(cfg.RunID),
		Pattern:         best,
	})
}

func TargetPatternName(runID string) string { return runID + "/target" }

func BestPatternName(runID string) string { return runID + "/best" }

// StopRun cancels an active run; RunEvolution then returns ErrRunStopped.
func (p *Polis) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.RLock()
	cancel, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel(ErrRunStopped)
	return nil
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Polis) registerRun(runID string, cancel context.CancelCauseFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) LastStopReason() StopReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStopReason
}

package bioevo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/google/uuid"

	"bioevo/internal/arrayio"
	"bioevo/internal/cell"
	"bioevo/internal/evo"
	"bioevo/internal/fitness"
	"bioevo/internal/model"
	"bioevo/internal/platform"
	"bioevo/internal/render"
	"bioevo/internal/stats"
	"bioevo/internal/telemetry"
	"bioevo/internal/tissue"
	"bioevo/internal/tuning"
)

const (
	bestParamsFile  = "best_params.npy"
	bestPatternFile = "best_pattern.npy"
	targetFile      = "target.npy"
	patternsPNG     = "patterns.png"
	fitnessPNG      = "fitness.png"
	metricsFile     = "metrics.prom"
)

// TissueOptions describes the tissue to simulate. Preset, when set, replaces
// every other field.
type TissueOptions struct {
	Preset       string
	Rows         int
	Cols         int
	OneD         bool
	Rule         string
	RuleExpr     string
	Multiplier   float64
	LeadingCells int
	RateScale    float64
	Coupling     float64
	TimeStart    float64
	TimeEnd      float64
	TimePoints   int
	InitialX     float64
	InitialV     float64
	Substeps     int
}

type RunRequest struct {
	RunID     string
	Generator string
	Tissue    TissueOptions
	// TargetPath is a .npy target; empty means the pattern of the baseline
	// params, which the fit should recover.
	TargetPath string
	TileTarget bool
	// PerturbedPath is an optional .npy pattern shown between target and best.
	PerturbedPath string
	Population    int
	Generations   int
	Seed          int64
	Workers       int
	Variant       string
	// Operator settings left nil take the DEAP defaults (cxpb 0.5,
	// mutpb 0.2, alpha 0.5, sigma 0.2, indpb 0.2); an explicit 0 is kept.
	CXPB           *float64
	MUTPB          *float64
	Alpha          *float64
	Sigma          *float64
	Indpb          *float64
	TournamentSize int
	EliteCount     int
	NoElitism      bool
	HallOfFameSize int
	// Lower and Upper replace one end of the generator's default bounds.
	Lower             *float64
	Upper             *float64
	RefineAttempts    int
	TolerateNonFinite bool
	MetricsAddr       string
	OnGeneration      func(model.GenerationStats)
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	History          []model.GenerationStats
	HallOfFame       []model.HallOfFameEntry
	BestParams       model.Params
	FinalBestFitness float64
	Evaluations      int
	Refinement       *tuning.TuneReport
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Generator == "" {
		req.Generator = "tissue"
	}
	if req.Population <= 0 {
		req.Population = 100
	}
	if req.Generations <= 0 {
		req.Generations = 50
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Variant == "" {
		req.Variant = string(evo.VariantEASimple)
	}
	ops := operators{
		cxpb:  valueOr(req.CXPB, 0.5),
		mutpb: valueOr(req.MUTPB, 0.2),
		alpha: valueOr(req.Alpha, 0.5),
		sigma: valueOr(req.Sigma, 0.2),
		indpb: valueOr(req.Indpb, 0.2),
	}
	if err := ops.validate(); err != nil {
		return RunSummary{}, err
	}
	if req.TournamentSize <= 0 {
		req.TournamentSize = 3
	}
	if req.HallOfFameSize <= 0 {
		req.HallOfFameSize = 3
	}
	if req.NoElitism {
		req.EliteCount = 0
	} else if req.EliteCount <= 0 {
		req.EliteCount = 1
	}
	if req.EliteCount >= req.Population {
		return RunSummary{}, fmt.Errorf("elite count %d must be below population %d", req.EliteCount, req.Population)
	}
	if req.RefineAttempts < 0 {
		return RunSummary{}, errors.New("refine attempts must be >= 0")
	}
	variant, err := evo.ParseVariant(req.Variant)
	if err != nil {
		return RunSummary{}, err
	}
	spec, err := resolveTissue(req.Generator, req.Tissue)
	if err != nil {
		return RunSummary{}, err
	}
	bounds := model.WideBounds
	if req.Tissue.Preset == "ivermectin" || (req.Generator == "tissue" && isDefaultTissue(req.Tissue)) {
		bounds = model.NarrowBounds
	}
	if req.Lower != nil {
		bounds.Lower = *req.Lower
	}
	if req.Upper != nil {
		bounds.Upper = *req.Upper
	}
	if err := bounds.Check(); err != nil {
		return RunSummary{}, err
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	gen, err := p.BuildGenerator(req.Generator, spec)
	if err != nil {
		return RunSummary{}, err
	}
	target, err := loadOrGenerateTarget(ctx, gen, req.TargetPath)
	if err != nil {
		return RunSummary{}, err
	}
	evaluator, err := fitness.NewEvaluator(gen, target, bounds, fitness.Options{TileTarget: req.TileTarget})
	if err != nil {
		return RunSummary{}, err
	}
	var perturbed *model.Pattern
	if req.PerturbedPath != "" {
		pattern, err := arrayio.ReadPattern(req.PerturbedPath)
		if err != nil {
			return RunSummary{}, fmt.Errorf("perturbed pattern: %w", err)
		}
		perturbed = &pattern
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	recorder := telemetry.NewRecorder(runID)
	if req.MetricsAddr != "" {
		_, stop, err := recorder.Serve(ctx, req.MetricsAddr)
		if err != nil {
			return RunSummary{}, err
		}
		defer stop()
	}
	onGeneration := func(st model.GenerationStats) {
		recorder.ObserveGeneration(st)
		if req.OnGeneration != nil {
			req.OnGeneration(st)
		}
	}

	toolbox := evo.Toolbox{
		Bounds:    bounds,
		Select:    evo.TournamentSelector{Size: req.TournamentSize},
		Crossover: evo.BlendCrossover{Alpha: ops.alpha},
		Mutate:    evo.GaussianMutation{Mu: 0, Sigma: ops.sigma, Indpb: ops.indpb},
	}
	var tuner tuning.Tuner
	if req.RefineAttempts > 0 {
		tuner = &tuning.HillClimber{
			Rand:            rand.New(rand.NewSource(req.Seed + 2000)),
			Steps:           3,
			StepSize:        0.1,
			AnnealingFactor: 0.9,
		}
	}

	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:             runID,
		TargetPath:        req.TargetPath,
		Evaluator:         evaluator,
		Instrument:        recorder.Instrument,
		Toolbox:           toolbox,
		Variant:           variant,
		PopulationSize:    req.Population,
		Generations:       req.Generations,
		EliteCount:        req.EliteCount,
		HallOfFameSize:    req.HallOfFameSize,
		CXPB:              ops.cxpb,
		MUTPB:             ops.mutpb,
		Workers:           req.Workers,
		Seed:              req.Seed,
		TolerateNonFinite: req.TolerateNonFinite,
		Tuner:             tuner,
		RefineAttempts:    req.RefineAttempts,
		OnGeneration:      onGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}

	cfg := runConfig(runID, req, variant, ops, spec, bounds)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:           cfg,
		History:          result.History,
		HallOfFame:       result.HallOfFame,
		FinalBestFitness: result.Champion.Fitness,
		Refinement:       result.Refinement,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := writeRunOutputs(runDir, evaluator.Target(), perturbed, result); err != nil {
		return RunSummary{}, err
	}
	if err := recorder.WriteSnapshotFile(filepath.Join(runDir, metricsFile)); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		Generator:        req.Generator,
		Variant:          string(variant),
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		Seed:             req.Seed,
		Workers:          req.Workers,
		EliteCount:       req.EliteCount,
		RefineEnabled:    req.RefineAttempts > 0,
		FinalBestFitness: result.Champion.Fitness,
		CreatedAtUTC:     result.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		History:          result.History,
		HallOfFame:       result.HallOfFame,
		BestParams:       result.Champion.Params,
		FinalBestFitness: result.Champion.Fitness,
		Evaluations:      result.Evaluations,
		Refinement:       result.Refinement,
	}, nil
}

// Float64 returns a pointer to v, for the optional RunRequest settings.
func Float64(v float64) *float64 {
	return &v
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// operators are the resolved variation settings of a run.
type operators struct {
	cxpb, mutpb  float64
	alpha, sigma float64
	indpb        float64
}

func (o operators) validate() error {
	for _, pr := range []struct {
		name string
		v    float64
	}{{"cxpb", o.cxpb}, {"mutpb", o.mutpb}, {"indpb", o.indpb}} {
		if math.IsNaN(pr.v) || pr.v < 0 || pr.v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", pr.name, pr.v)
		}
	}
	if math.IsNaN(o.alpha) || o.alpha < 0 {
		return fmt.Errorf("alpha must be >= 0, got %v", o.alpha)
	}
	if math.IsNaN(o.sigma) || o.sigma < 0 {
		return fmt.Errorf("sigma must be >= 0, got %v", o.sigma)
	}
	return nil
}

func writeRunOutputs(runDir string, target model.Pattern, perturbed *model.Pattern, result platform.EvolutionResult) error {
	params := make([]model.Params, 0, len(result.HallOfFame))
	for _, entry := range result.HallOfFame {
		params = append(params, entry.Params)
	}
	if err := arrayio.WriteParams(filepath.Join(runDir, bestParamsFile), params); err != nil {
		return err
	}
	if err := arrayio.WritePattern(filepath.Join(runDir, bestPatternFile), result.BestPattern); err != nil {
		return err
	}
	if err := arrayio.WritePattern(filepath.Join(runDir, targetFile), target); err != nil {
		return err
	}

	panels := []render.Panel{{Title: "Target", Pattern: target}}
	if perturbed != nil {
		panels = append(panels, render.Panel{Title: "Perturbed", Pattern: *perturbed})
	}
	panels = append(panels, render.Panel{Title: "Best " + result.Champion.Params.String(), Pattern: result.BestPattern})
	if err := render.WritePatternPanels(filepath.Join(runDir, patternsPNG), panels); err != nil {
		return err
	}
	return render.WriteLineChart(filepath.Join(runDir, fitnessPNG), render.FitnessChart(result.History))
}

func loadOrGenerateTarget(ctx context.Context, gen tissue.PatternGenerator, path string) (model.Pattern, error) {
	if path != "" {
		target, err := arrayio.ReadPattern(path)
		if err != nil {
			return model.Pattern{}, fmt.Errorf("target: %w", err)
		}
		return target, nil
	}
	target, err := gen.Generate(ctx, model.Baseline)
	if err != nil {
		return model.Pattern{}, fmt.Errorf("baseline target: %w", err)
	}
	return target, nil
}

func isDefaultTissue(t TissueOptions) bool {
	return t.Preset == "" && t.Rows == 0 && t.Cols == 0
}

// resolveTissue fills a spec from a preset or explicit options. Unset
// tissue options fall back to the ivermectin preset; unset mean field
// dimensions to 16x16.
func resolveTissue(generator string, t TissueOptions) (tissue.Spec, error) {
	if generator == "mean_field" {
		rows, cols := t.Rows, t.Cols
		if rows <= 0 {
			rows = 16
		}
		if cols <= 0 {
			cols = 16
		}
		return tissue.Spec{Rows: rows, Cols: cols}, nil
	}
	if t.Preset != "" {
		return tissue.PresetSpec(t.Preset)
	}
	if isDefaultTissue(t) {
		return tissue.IvermectinSpec, nil
	}
	spec := tissue.Spec{
		Rows:         t.Rows,
		Cols:         t.Cols,
		OneD:         t.OneD,
		Grid:         cell.TimeGrid{Start: t.TimeStart, End: t.TimeEnd, Points: t.TimePoints},
		Initial:      cell.State{X: t.InitialX, V: t.InitialV},
		RateScale:    t.RateScale,
		Rule:         t.Rule,
		RuleExpr:     t.RuleExpr,
		Multiplier:   t.Multiplier,
		LeadingCells: t.LeadingCells,
		Coupling:     t.Coupling,
		Substeps:     t.Substeps,
	}
	if spec.Rows == 0 && spec.OneD {
		spec.Rows = 1
	}
	if spec.Grid.Points == 0 && spec.Grid.End == 0 {
		spec.Grid = cell.LongGrid
	}
	if spec.Initial == (cell.State{}) {
		spec.Initial = cell.Resting
	}
	return spec, nil
}

func runConfig(runID string, req RunRequest, variant evo.Variant, ops operators, spec tissue.Spec, bounds model.Bounds) stats.RunConfig {
	return stats.RunConfig{
		RunID:             runID,
		Generator:         req.Generator,
		Variant:           string(variant),
		TargetPath:        req.TargetPath,
		TileTarget:        req.TileTarget,
		Rows:              spec.Rows,
		Cols:              spec.Cols,
		OneD:              spec.OneD,
		Rule:              spec.Rule,
		RuleExpr:          spec.RuleExpr,
		Multiplier:        spec.Multiplier,
		LeadingCells:      spec.LeadingCells,
		RateScale:         spec.RateScale,
		Coupling:          spec.Coupling,
		TimeStart:         spec.Grid.Start,
		TimeEnd:           spec.Grid.End,
		TimePoints:        spec.Grid.Points,
		InitialX:          spec.Initial.X,
		InitialV:          spec.Initial.V,
		Substeps:          spec.Substeps,
		PopulationSize:    req.Population,
		Generations:       req.Generations,
		EliteCount:        req.EliteCount,
		HallOfFameSize:    req.HallOfFameSize,
		CXPB:              ops.cxpb,
		MUTPB:             ops.mutpb,
		Alpha:             ops.alpha,
		Sigma:             ops.sigma,
		Indpb:             ops.indpb,
		TournamentSize:    req.TournamentSize,
		Lower:             bounds.Lower,
		Upper:             bounds.Upper,
		Workers:           req.Workers,
		Seed:              req.Seed,
		RefineAttempts:    req.RefineAttempts,
		TolerateNonFinite: req.TolerateNonFinite,
	}
}

// specFromConfig rebuilds the tissue spec recorded in a run's config.
func specFromConfig(cfg stats.RunConfig) tissue.Spec {
	return tissue.Spec{
		Rows:         cfg.Rows,
		Cols:         cfg.Cols,
		OneD:         cfg.OneD,
		Grid:         cell.TimeGrid{Start: cfg.TimeStart, End: cfg.TimeEnd, Points: cfg.TimePoints},
		Initial:      cell.State{X: cfg.InitialX, V: cfg.InitialV},
		RateScale:    cfg.RateScale,
		Rule:         cfg.Rule,
		RuleExpr:     cfg.RuleExpr,
		Multiplier:   cfg.Multiplier,
		LeadingCells: cfg.LeadingCells,
		Coupling:     cfg.Coupling,
		Substeps:     cfg.Substeps,
	}
}

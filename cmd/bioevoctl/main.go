package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"bioevo/internal/cell"
	"bioevo/internal/dose"
	"bioevo/internal/model"
	"bioevo/internal/storage"
	api "bioevo/pkg/bioevo"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "cell":
		return runCell(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "pk":
		return runPK(ctx, args[1:])
	case "tissue":
		return runTissue(ctx, args[1:])
	case "evolve":
		return runEvolve(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "hof":
		return runHallOfFame(ctx, args[1:])
	case "verify":
		return runVerify(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are the storage flags shared by every command that opens a client.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "bioevo.db", "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", artifactsDir, "run artifacts directory"),
	}
}

func (f clientFlags) open() (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runCell(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cell", flag.ContinueOnError)
	k1 := fs.Float64("k1", cell.BaselineRates.K1, "production rate of X driven by V")
	k2 := fs.Float64("k2", cell.BaselineRates.K2, "X consumption rate")
	k3 := fs.Float64("k3", cell.BaselineRates.K3, "voltage decay rate")
	tStart := fs.Float64("t-start", cell.ShortGrid.Start, "integration start time")
	tEnd := fs.Float64("t-end", cell.ShortGrid.End, "integration end time")
	points := fs.Int("points", cell.ShortGrid.Points, "number of sample times")
	x0 := fs.Float64("x0", cell.Resting.X, "initial X")
	v0 := fs.Float64("v0", cell.Resting.V, "initial V")
	substeps := fs.Int("substeps", 0, "integrator substeps per sample interval (0 uses default)")
	outDir := fs.String("out", "", "directory for trajectory.csv and trajectory.png")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.Simulate(ctx, api.CellRequest{
		Rates:    cell.Rates{K1: *k1, K2: *k2, K3: *k3},
		Grid:     cell.TimeGrid{Start: *tStart, End: *tEnd, Points: *points},
		Initial:  cell.State{X: *x0, V: *v0},
		Substeps: *substeps,
		OutDir:   *outDir,
	})
	if err != nil {
		return err
	}
	final := res.Trajectory.Final()
	fmt.Printf("cell k1=%g k2=%g k3=%g points=%d final_x=%.6f final_v=%.6f\n", *k1, *k2, *k3, len(res.Trajectory.Times), final.X, final.V)
	for _, f := range res.Files {
		fmt.Printf("wrote=%s\n", filepath.Clean(f))
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	drug := fs.String("drug", "amiloride", "dose-response curve: amiloride|amiloride_curated|custom")
	ic50 := fs.Float64("ic50", 0, "custom IC50 (M)")
	hillN := fs.Float64("hill-n", 0, "custom Hill coefficient")
	mode := fs.String("mode", string(dose.Block), "response mode: block|potentiate")
	maxFold := fs.Float64("max-fold", 0, "maximum k3 fold increase for potentiate mode")
	concLo := fs.Float64("log-lo", -8, "log10 of the lowest concentration")
	concHi := fs.Float64("log-hi", -3, "log10 of the highest concentration")
	points := fs.Int("points", 50, "number of concentrations")
	substeps := fs.Int("substeps", 0, "integrator substeps per sample interval (0 uses default)")
	outDir := fs.String("out", "", "directory for dose_response.csv and dose_response.png")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hill, err := hillFromName(*drug, *ic50, *hillN)
	if err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.Sweep(ctx, api.SweepRequest{
		Hill:     hill,
		Mode:     dose.Mode(*mode),
		MaxFold:  *maxFold,
		ConcLo:   *concLo,
		ConcHi:   *concHi,
		Points:   *points,
		Substeps: *substeps,
		OutDir:   *outDir,
	})
	if err != nil {
		return err
	}
	for _, pt := range res.Points {
		fmt.Printf("conc=%.3e multiplier=%.6f v=%.6f\n", pt.Conc, pt.Multiplier, pt.V)
	}
	for _, f := range res.Files {
		fmt.Printf("wrote=%s\n", filepath.Clean(f))
	}
	return nil
}

func runPK(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pk", flag.ContinueOnError)
	doseUG := fs.Float64("dose", dose.OralPropranolol.Dose, "dose (ug)")
	bioavailability := fs.Float64("bioavailability", dose.OralPropranolol.Bioavailability, "oral bioavailability fraction")
	vd := fs.Float64("vd", dose.OralPropranolol.Vd, "volume of distribution (L)")
	ke := fs.Float64("ke", dose.OralPropranolol.Ke, "elimination rate (1/h)")
	ic50 := fs.Float64("ic50", dose.Propranolol.IC50, "blockade IC50 (ng/mL)")
	hillN := fs.Float64("hill-n", dose.Propranolol.N, "blockade Hill coefficient")
	hours := fs.Float64("hours", 24, "time course length (h)")
	points := fs.Int("points", 97, "number of sample times")
	outDir := fs.String("out", "", "directory for pk_blockade.csv and pk_blockade.png")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.PK(ctx, api.PKRequest{
		Model:  dose.OneCompartment{Dose: *doseUG, Bioavailability: *bioavailability, Vd: *vd, Ke: *ke},
		Hill:   dose.Hill{IC50: *ic50, N: *hillN},
		Hours:  *hours,
		Points: *points,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	for _, pt := range res.Points {
		fmt.Printf("t=%.3f conc=%.6f blockade=%.6f\n", pt.Time, pt.Conc, pt.Effect)
	}
	for _, f := range res.Files {
		fmt.Printf("wrote=%s\n", filepath.Clean(f))
	}
	return nil
}

func runTissue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tissue", flag.ContinueOnError)
	generator := fs.String("generator", "tissue", "pattern generator: tissue|mean_field")
	tf := addTissueFlags(fs)
	k1 := fs.Float64("k1", model.Baseline.K1, "k1 scale")
	k2 := fs.Float64("k2", model.Baseline.K2, "k2 scale")
	k3 := fs.Float64("k3", model.Baseline.K3, "k3 scale")
	patternPath := fs.String("pattern-out", "", "write the final pattern as .npy")
	heatmapPath := fs.String("heatmap-out", "", "write the final pattern as a PNG heatmap")
	videoPath := fs.String("video-out", "", "write an AVI of a coupled run")
	frameEvery := fs.Int("frame-every", 0, "steps between video frames (0 uses points/100)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.Tissue(ctx, api.TissueRequest{
		Generator:   *generator,
		Tissue:      tf.options(),
		Params:      model.Params{K1: *k1, K2: *k2, K3: *k3},
		PatternPath: *patternPath,
		HeatmapPath: *heatmapPath,
		VideoPath:   *videoPath,
		FrameEvery:  *frameEvery,
	})
	if err != nil {
		return err
	}
	lo, hi := res.Pattern.Range()
	fmt.Printf("tissue generator=%s shape=%v min_v=%.6f max_v=%.6f frames=%d\n", res.Generator, res.Pattern.Shape, lo, hi, res.Frames)
	return nil
}

func runEvolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evolve", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	generator := fs.String("generator", "tissue", "pattern generator: tissue|mean_field")
	tf := addTissueFlags(fs)
	targetPath := fs.String("target", "", "target pattern .npy (default: pattern of the baseline params)")
	tileTarget := fs.Bool("tile-target", false, "tile a smaller target up to the generator shape")
	perturbedPath := fs.String("perturbed", "", "optional perturbed pattern .npy shown in patterns.png")
	population := fs.Int("pop", 100, "population size")
	generations := fs.Int("gens", 50, "generation count")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	variant := fs.String("variant", "ea_simple", "evolution variant: ea_simple|select_only")
	cxpb := fs.Float64("cxpb", 0.5, "crossover probability")
	mutpb := fs.Float64("mutpb", 0.2, "mutation probability")
	alpha := fs.Float64("alpha", 0.5, "blend crossover alpha")
	sigma := fs.Float64("sigma", 0.2, "gaussian mutation sigma")
	indpb := fs.Float64("indpb", 0.2, "per-gene mutation probability")
	tournament := fs.Int("tournament", 3, "tournament size")
	elite := fs.Int("elite", 1, "elite count carried into each generation")
	noElitism := fs.Bool("no-elitism", false, "disable elitism")
	hofSize := fs.Int("hof", 3, "hall of fame size")
	lower := fs.Float64("lower", 0, "lower parameter bound (unset uses the generator default)")
	upper := fs.Float64("upper", 0, "upper parameter bound (unset uses the generator default)")
	refine := fs.Int("refine", 0, "hill-climb attempts on the champion after evolution (0 disables)")
	tolerate := fs.Bool("tolerate-non-finite", false, "score non-finite integrations as +Inf instead of failing")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	verbose := fs.Bool("verbose", false, "print per-generation statistics")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	flagValue := map[string]any{
		"run-id":              *runID,
		"generator":           *generator,
		"target":              *targetPath,
		"tile-target":         *tileTarget,
		"perturbed":           *perturbedPath,
		"pop":                 *population,
		"gens":                *generations,
		"seed":                *seed,
		"workers":             *workers,
		"variant":             *variant,
		"cxpb":                *cxpb,
		"mutpb":               *mutpb,
		"alpha":               *alpha,
		"sigma":               *sigma,
		"indpb":               *indpb,
		"tournament":          *tournament,
		"elite":               *elite,
		"no-elitism":          *noElitism,
		"hof":                 *hofSize,
		"lower":               *lower,
		"upper":               *upper,
		"refine":              *refine,
		"tolerate-non-finite": *tolerate,
	}
	for name, v := range tf.values() {
		flagValue[name] = v
	}
	if *configPath == "" {
		all := make(map[string]bool, len(flagValue))
		for name := range flagValue {
			all[name] = true
		}
		// bounds have no flag default; only explicit values override
		all["lower"], all["upper"] = setFlags["lower"], setFlags["upper"]
		setFlags = all
	}
	if err := overrideFromFlags(&req, setFlags, flagValue); err != nil {
		return err
	}
	req.MetricsAddr = *metricsAddr
	if *verbose {
		req.OnGeneration = func(st model.GenerationStats) {
			fmt.Printf("generation=%d evaluations=%d best_mse=%.6g mean_mse=%.6g std_mse=%.6g best_so_far=%.6g rejected=%d\n",
				st.Generation, st.Evaluations, st.BestMSE, st.MeanMSE, st.StdMSE, st.BestSoFarMSE, st.Rejected)
		}
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s generator=%s pop=%d gens=%d seed=%d evaluations=%d\n",
		summary.RunID, req.Generator, req.Population, req.Generations, req.Seed, summary.Evaluations)
	for _, entry := range summary.HallOfFame {
		fmt.Printf("hall_of_fame rank=%d k1=%.6f k2=%.6f k3=%.6f fitness=%.6g\n", entry.Rank, entry.Params.K1, entry.Params.K2, entry.Params.K3, entry.Fitness)
	}
	if summary.Refinement != nil {
		fmt.Printf("refinement start=%.6g final=%.6g accepted=%d evaluations=%d\n",
			summary.Refinement.StartFitness, summary.Refinement.FinalFitness, summary.Refinement.AcceptedCandidates, summary.Refinement.CandidateEvaluations)
	}
	fmt.Printf("final_best_fitness=%.6g\n", summary.FinalBestFitness)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(items)
	}
	for _, e := range items {
		fmt.Printf("run_id=%s created_at=%s generator=%s variant=%s seed=%d pop=%d gens=%d refine=%t final_best_fitness=%.6g\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Generator,
			e.Variant,
			e.Seed,
			e.Population,
			e.Generations,
			e.RefineEnabled,
			e.FinalBestFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRunSelector("fitness", *runID, *latest); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, api.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for _, st := range history {
		fmt.Printf("generation=%d best_mse=%.6g mean_mse=%.6g best_so_far=%.6g\n", st.Generation, st.BestMSE, st.MeanMSE, st.BestSoFarMSE)
	}
	return nil
}

func runHallOfFame(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("hof", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the hall of fame of the most recent run")
	jsonOut := fs.Bool("json", false, "emit hall of fame as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRunSelector("hof", *runID, *latest); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	entries, err := client.HallOfFame(ctx, api.HallOfFameRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(entries)
	}
	for _, e := range entries {
		fmt.Printf("rank=%d k1=%.6f k2=%.6f k3=%.6f fitness=%.6g\n", e.Rank, e.Params.K1, e.Params.K2, e.Params.K3, e.Fitness)
	}
	return nil
}

func runVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "verify the most recent run")
	tolerance := fs.Float64("tolerance", 1e-9, "allowed absolute fitness difference")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRunSelector("verify", *runID, *latest); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.Verify(ctx, api.VerifyRequest{RunID: *runID, Latest: *latest, Tolerance: *tolerance})
	if err != nil {
		return err
	}
	fmt.Printf("verify run_id=%s params=%s recorded=%.9g recomputed=%.9g match=%t\n", res.RunID, res.Params, res.RecordedFitness, res.Fitness, res.Match)
	if !res.Match {
		return fmt.Errorf("recomputed fitness %.9g differs from recorded %.9g", res.Fitness, res.RecordedFitness)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRunSelector("export", *runID, *latest); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

// tissueFlags binds the tissue geometry flags shared by tissue and evolve.
type tissueFlags struct {
	preset       *string
	rows         *int
	cols         *int
	oneD         *bool
	rule         *string
	ruleExpr     *string
	multiplier   *float64
	leadingCells *int
	rateScale    *float64
	coupling     *float64
	tStart       *float64
	tEnd         *float64
	points       *int
	x0           *float64
	v0           *float64
	substeps     *int
}

func addTissueFlags(fs *flag.FlagSet) tissueFlags {
	return tissueFlags{
		preset:       fs.String("preset", "", "tissue preset: ivermectin|sequence|coupled (overrides geometry flags)"),
		rows:         fs.Int("rows", 0, "tissue rows (0 with cols 0 uses the ivermectin preset)"),
		cols:         fs.Int("cols", 0, "tissue columns"),
		oneD:         fs.Bool("one-d", false, "emit a 1D sequence pattern (rows must be 1)"),
		rule:         fs.String("rule", "uniform", "multiplier rule: uniform|left_half|leading"),
		ruleExpr:     fs.String("rule-expr", "", "multiplier expression over row, col, rows, cols, mid_row, mid_col"),
		multiplier:   fs.Float64("multiplier", 1, "k3 multiplier applied by the rule"),
		leadingCells: fs.Int("leading-cells", 0, "cell count for rule=leading"),
		rateScale:    fs.Float64("rate-scale", 1, "k3 scale applied to every cell"),
		coupling:     fs.Float64("coupling", 0, "diffusion coupling strength (> 0 selects the coupled tissue)"),
		tStart:       fs.Float64("t-start", 0, "integration start time"),
		tEnd:         fs.Float64("t-end", 0, "integration end time (0 with points 0 uses 0..100)"),
		points:       fs.Int("points", 0, "number of time points"),
		x0:           fs.Float64("x0", 0, "initial X (0 with v0 0 uses the resting state)"),
		v0:           fs.Float64("v0", 0, "initial V"),
		substeps:     fs.Int("substeps", 0, "integrator substeps per sample interval (0 uses default)"),
	}
}

func (f tissueFlags) options() api.TissueOptions {
	return api.TissueOptions{
		Preset:       *f.preset,
		Rows:         *f.rows,
		Cols:         *f.cols,
		OneD:         *f.oneD,
		Rule:         *f.rule,
		RuleExpr:     *f.ruleExpr,
		Multiplier:   *f.multiplier,
		LeadingCells: *f.leadingCells,
		RateScale:    *f.rateScale,
		Coupling:     *f.coupling,
		TimeStart:    *f.tStart,
		TimeEnd:      *f.tEnd,
		TimePoints:   *f.points,
		InitialX:     *f.x0,
		InitialV:     *f.v0,
		Substeps:     *f.substeps,
	}
}

func (f tissueFlags) values() map[string]any {
	return map[string]any{
		"preset":        *f.preset,
		"rows":          *f.rows,
		"cols":          *f.cols,
		"one-d":         *f.oneD,
		"rule":          *f.rule,
		"rule-expr":     *f.ruleExpr,
		"multiplier":    *f.multiplier,
		"leading-cells": *f.leadingCells,
		"rate-scale":    *f.rateScale,
		"coupling":      *f.coupling,
		"t-start":       *f.tStart,
		"t-end":         *f.tEnd,
		"points":        *f.points,
		"x0":            *f.x0,
		"v0":            *f.v0,
		"substeps":      *f.substeps,
	}
}

func hillFromName(name string, ic50, n float64) (dose.Hill, error) {
	switch name {
	case "amiloride":
		return dose.Amiloride, nil
	case "amiloride_curated":
		return dose.AmilorideCurated, nil
	case "custom":
		h := dose.Hill{IC50: ic50, N: n}
		if err := h.Validate(); err != nil {
			return dose.Hill{}, err
		}
		return h, nil
	default:
		return dose.Hill{}, fmt.Errorf("unsupported drug: %s", name)
	}
}

func requireRunSelector(command, runID string, latest bool) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: bioevoctl <init|cell|sweep|pk|tissue|evolve|runs|fitness|hof|verify|export> [flags]", msg)
}

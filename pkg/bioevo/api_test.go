package bioevo

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bioevo/internal/arrayio"
	"bioevo/internal/cell"
	"bioevo/internal/dose"
	"bioevo/internal/model"
	"bioevo/internal/stats"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRunMeanFieldWritesArtifactsAndVerifies(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	var seen []int
	summary, err := client.Run(ctx, RunRequest{
		RunID:        "mf-1",
		Generator:    "mean_field",
		Population:   20,
		Generations:  10,
		Seed:         42,
		Workers:      3,
		OnGeneration: func(st model.GenerationStats) { seen = append(seen, st.Generation) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "mf-1" || len(summary.History) != 11 || len(seen) != 11 {
		t.Fatalf("unexpected summary: id=%s history=%d callbacks=%d", summary.RunID, len(summary.History), len(seen))
	}
	for i := 1; i < len(summary.History); i++ {
		if summary.History[i].BestSoFarMSE > summary.History[i-1].BestSoFarMSE {
			t.Fatalf("best so far increased at generation %d", i)
		}
	}
	if math.Abs(summary.FinalBestFitness-summary.History[10].BestSoFarMSE) > 1e-12 {
		t.Fatalf("final fitness %v does not match history %v", summary.FinalBestFitness, summary.History[10].BestSoFarMSE)
	}

	for _, file := range []string{"config.json", "generation_stats.json", "hall_of_fame.json", "fitness_history.csv", bestParamsFile, bestPatternFile, targetFile, patternsPNG, fitnessPNG, metricsFile} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
	params, err := arrayio.ReadParams(filepath.Join(summary.ArtifactsDir, bestParamsFile))
	if err != nil {
		t.Fatalf("read best params: %v", err)
	}
	if len(params) != 3 || params[0] != summary.BestParams {
		t.Fatalf("unexpected best params file: %+v", params)
	}
	metrics, err := os.ReadFile(filepath.Join(summary.ArtifactsDir, metricsFile))
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `bioevo_generations_total{run_id="mf-1"} 11`) {
		t.Fatalf("unexpected metrics snapshot:\n%s", metrics)
	}

	verified, err := client.Verify(ctx, VerifyRequest{Latest: true})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Match || verified.RunID != "mf-1" || math.Abs(verified.Fitness-summary.FinalBestFitness) > 1e-12 {
		t.Fatalf("round trip mismatch: %+v (recorded %v)", verified, summary.FinalBestFitness)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil || len(runs) != 1 || runs[0].Generator != "mean_field" {
		t.Fatalf("unexpected runs: %+v err=%v", runs, err)
	}
	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "mf-1", Limit: 4})
	if err != nil || len(history) != 4 {
		t.Fatalf("unexpected fitness history: %d err=%v", len(history), err)
	}
	hof, err := client.HallOfFame(ctx, HallOfFameRequest{Latest: true})
	if err != nil || len(hof) != 3 || hof[0].Params != summary.BestParams {
		t.Fatalf("unexpected hall of fame: %+v err=%v", hof, err)
	}
	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, bestParamsFile)); err != nil {
		t.Fatalf("expected exported best params: %v", err)
	}
}

func TestRunTissueRecoversSelfConsistentTarget(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, RunRequest{
		Tissue: TissueOptions{
			Rows:       2,
			Cols:       4,
			Rule:       "left_half",
			Multiplier: 2,
			RateScale:  0.1,
			TimeEnd:    10,
			TimePoints: 21,
			Substeps:   2,
		},
		Population:  8,
		Generations: 3,
		Seed:        3,
		Workers:     2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected a generated run id")
	}
	first, last := summary.History[0].BestSoFarMSE, summary.History[len(summary.History)-1].BestSoFarMSE
	if last > first {
		t.Fatalf("best so far should not rise: %v -> %v", first, last)
	}
	verified, err := client.Verify(ctx, VerifyRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Match {
		t.Fatalf("verify mismatch: %+v", verified)
	}
	target, err := arrayio.ReadPattern(filepath.Join(summary.ArtifactsDir, targetFile))
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if target.Rows() != 2 || target.Cols() != 4 {
		t.Fatalf("unexpected target shape: %v", target.Shape)
	}
}

func TestRunKeepsExplicitZeroOperatorSettings(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, RunRequest{
		RunID:       "zero-ops",
		Generator:   "mean_field",
		Tissue:      TissueOptions{Rows: 4, Cols: 4},
		Population:  6,
		Generations: 2,
		Seed:        5,
		CXPB:        Float64(0),
		MUTPB:       Float64(0),
		Alpha:       Float64(0),
		Sigma:       Float64(0),
		Indpb:       Float64(0),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	cfg, ok, err := stats.ReadRunConfig(filepath.Dir(summary.ArtifactsDir), "zero-ops")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.CXPB != 0 || cfg.MUTPB != 0 || cfg.Alpha != 0 || cfg.Sigma != 0 || cfg.Indpb != 0 {
		t.Fatalf("explicit zero settings were replaced: cxpb=%v mutpb=%v alpha=%v sigma=%v indpb=%v", cfg.CXPB, cfg.MUTPB, cfg.Alpha, cfg.Sigma, cfg.Indpb)
	}
	// with no variation only the initial vectors can appear
	if summary.History[2].Evaluations != 0 {
		t.Fatalf("expected no re-evaluations without variation, got %d", summary.History[2].Evaluations)
	}

	defaults, err := client.Run(ctx, RunRequest{RunID: "default-ops", Generator: "mean_field", Tissue: TissueOptions{Rows: 4, Cols: 4}, Population: 6, Generations: 1})
	if err != nil {
		t.Fatalf("run with defaults: %v", err)
	}
	cfg, _, err = stats.ReadRunConfig(filepath.Dir(defaults.ArtifactsDir), "default-ops")
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if cfg.CXPB != 0.5 || cfg.MUTPB != 0.2 || cfg.Alpha != 0.5 || cfg.Sigma != 0.2 || cfg.Indpb != 0.2 {
		t.Fatalf("unset settings should take defaults: %+v", cfg)
	}
}

func TestRunOverridesOneBoundIndependently(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, RunRequest{
		RunID:       "lower-only",
		Generator:   "mean_field",
		Tissue:      TissueOptions{Rows: 4, Cols: 4},
		Population:  6,
		Generations: 1,
		Lower:       Float64(0.5),
	})
	if err != nil {
		t.Fatalf("run with lower bound only: %v", err)
	}
	cfg, _, err := stats.ReadRunConfig(filepath.Dir(summary.ArtifactsDir), "lower-only")
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if cfg.Lower != 0.5 || cfg.Upper != 2 {
		t.Fatalf("expected bounds [0.5, 2], got [%v, %v]", cfg.Lower, cfg.Upper)
	}
	for _, entry := range summary.HallOfFame {
		for _, v := range entry.Params.Slice() {
			if v < 0.5 || v > 2 {
				t.Fatalf("hall of fame vector outside bounds: %+v", entry.Params)
			}
		}
	}
}

func TestRunValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.Run(ctx, RunRequest{Generator: "mean_field", Population: 2, EliteCount: 2}); err == nil {
		t.Fatal("expected elite count error")
	}
	if _, err := client.Run(ctx, RunRequest{Generator: "mean_field", Variant: "mu_plus_lambda"}); err == nil {
		t.Fatal("expected unsupported variant error")
	}
	if _, err := client.Run(ctx, RunRequest{Generator: "mean_field", Lower: Float64(2), Upper: Float64(1)}); err == nil {
		t.Fatal("expected bounds error")
	}
	if _, err := client.Run(ctx, RunRequest{Generator: "mean_field", Sigma: Float64(-0.1)}); err == nil {
		t.Fatal("expected negative sigma error")
	}
	if _, err := client.Run(ctx, RunRequest{Generator: "mean_field", CXPB: Float64(1.5)}); err == nil {
		t.Fatal("expected crossover probability error")
	}
	if _, err := client.Run(ctx, RunRequest{Generator: "cellular_automaton"}); err == nil {
		t.Fatal("expected unregistered generator error")
	}
	if _, err := client.Verify(ctx, VerifyRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export request error")
	}
	if _, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "a", Latest: true}); err == nil {
		t.Fatal("expected run id and latest conflict")
	}
}

func TestSimulateSweepAndPKWriteOutputs(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	dir := t.TempDir()

	cellResult, err := client.Simulate(ctx, CellRequest{Grid: cell.TimeGrid{Start: 0, End: 10, Points: 50}, OutDir: dir})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(cellResult.Trajectory.V) != 50 || len(cellResult.Files) != 2 {
		t.Fatalf("unexpected cell result: %d points, files %v", len(cellResult.Trajectory.V), cellResult.Files)
	}
	wantV := math.Exp(-0.01 * 10)
	if got := cellResult.Trajectory.Final().V; math.Abs(got-wantV) > 1e-6 {
		t.Fatalf("expected V(10)=%v, got %v", wantV, got)
	}

	sweep, err := client.Sweep(ctx, SweepRequest{Points: 5, Grid: cell.TimeGrid{Start: 0, End: 20, Points: 40}, OutDir: dir})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(sweep.Points) != 5 || sweep.Points[4].Multiplier >= sweep.Points[0].Multiplier {
		t.Fatalf("unexpected sweep: %+v", sweep.Points)
	}
	if _, err := client.Sweep(ctx, SweepRequest{ConcLo: -3, ConcHi: -8}); err == nil {
		t.Fatal("expected empty range error")
	}

	pk, err := client.PK(ctx, PKRequest{Hours: 12, Points: 13, OutDir: dir})
	if err != nil {
		t.Fatalf("pk: %v", err)
	}
	if len(pk.Points) != 13 || math.Abs(pk.Points[0].Conc-dose.OralPropranolol.InitialConcentration()) > 1e-12 {
		t.Fatalf("unexpected pk points: %+v", pk.Points[:2])
	}

	for _, name := range []string{"trajectory.csv", "trajectory.png", "dose_response.csv", "dose_response.png", "pk_blockade.csv", "pk_blockade.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestTissueWritesPatternHeatmapAndVideo(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	dir := t.TempDir()

	res, err := client.Tissue(ctx, TissueRequest{
		Tissue:      TissueOptions{Preset: "coupled"},
		PatternPath: filepath.Join(dir, "coupled.npy"),
		HeatmapPath: filepath.Join(dir, "coupled.png"),
		VideoPath:   filepath.Join(dir, "coupled.avi"),
		FrameEvery:  50,
	})
	if err != nil {
		t.Fatalf("tissue: %v", err)
	}
	if res.Generator != "tissue_coupled" || res.Frames != 11 {
		t.Fatalf("unexpected tissue result: generator=%s frames=%d", res.Generator, res.Frames)
	}
	saved, err := arrayio.ReadPattern(filepath.Join(dir, "coupled.npy"))
	if err != nil {
		t.Fatalf("read pattern: %v", err)
	}
	if saved.At(5, 0) <= saved.At(5, 9) {
		t.Fatalf("slowed left half should stay more depolarized: %v vs %v", saved.At(5, 0), saved.At(5, 9))
	}
	for _, name := range []string{"coupled.png", "coupled.avi"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	if _, err := client.Tissue(ctx, TissueRequest{Tissue: TissueOptions{Preset: "sequence"}, VideoPath: filepath.Join(dir, "x.avi")}); err == nil {
		t.Fatal("expected video on uncoupled tissue to fail")
	}
	seq, err := client.Tissue(ctx, TissueRequest{Tissue: TissueOptions{Preset: "sequence"}, Params: model.Params{K1: 1, K2: 0, K3: 0.01}})
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if seq.Pattern.Dims() != 1 || seq.Pattern.Len() != 10 {
		t.Fatalf("unexpected sequence shape: %v", seq.Pattern.Shape)
	}
}

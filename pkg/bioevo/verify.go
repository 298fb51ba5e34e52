package bioevo

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"bioevo/internal/arrayio"
	"bioevo/internal/fitness"
	"bioevo/internal/model"
	"bioevo/internal/stats"
)

type VerifyRequest struct {
	RunID  string
	Latest bool
	// Tolerance is the allowed absolute difference; zero means 1e-9.
	Tolerance float64
}

type VerifyResult struct {
	RunID           string
	Params          model.Params
	RecordedFitness float64
	Fitness         float64
	Match           bool
}

// Verify reloads best_params.npy and target.npy, rebuilds the generator from
// config.json and re-evaluates the champion.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return VerifyResult{}, err
	}
	if runID == "" {
		return VerifyResult{}, fmt.Errorf("verify requires run id or latest")
	}
	tolerance := req.Tolerance
	if tolerance <= 0 {
		tolerance = 1e-9
	}

	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return VerifyResult{}, err
	}
	if !ok {
		return VerifyResult{}, fmt.Errorf("run config not found for run id: %s", runID)
	}
	hof, ok, err := stats.ReadHallOfFame(c.artifactsDir, runID)
	if err != nil {
		return VerifyResult{}, err
	}
	if !ok || len(hof) == 0 {
		return VerifyResult{}, fmt.Errorf("hall of fame not found for run id: %s", runID)
	}

	runDir := stats.RunDir(c.artifactsDir, runID)
	params, err := arrayio.ReadParams(filepath.Join(runDir, bestParamsFile))
	if err != nil {
		return VerifyResult{}, err
	}
	if len(params) == 0 {
		return VerifyResult{}, fmt.Errorf("%s holds no parameter vectors", bestParamsFile)
	}
	target, err := arrayio.ReadPattern(filepath.Join(runDir, targetFile))
	if err != nil {
		return VerifyResult{}, err
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	gen, err := p.BuildGenerator(cfg.Generator, specFromConfig(cfg))
	if err != nil {
		return VerifyResult{}, err
	}
	evaluator, err := fitness.NewEvaluator(gen, target, model.Bounds{Lower: cfg.Lower, Upper: cfg.Upper}, fitness.Options{})
	if err != nil {
		return VerifyResult{}, err
	}
	got, err := evaluator.Evaluate(ctx, params[0])
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		RunID:           runID,
		Params:          params[0],
		RecordedFitness: hof[0].Fitness,
		Fitness:         got,
		Match:           math.Abs(got-hof[0].Fitness) <= tolerance,
	}, nil
}

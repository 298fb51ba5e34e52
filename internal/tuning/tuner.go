package tuning

import (
	"context"

	"bioevo/internal/model"
)

// FitnessFn returns an error score for params; lower is better.
type FitnessFn func(ctx context.Context, p model.Params) (float64, error)

type TuneReport struct {
	AttemptsPlanned      int     `json:"attempts_planned"`
	AttemptsExecuted     int     `json:"attempts_executed"`
	CandidateEvaluations int     `json:"candidate_evaluations"`
	AcceptedCandidates   int     `json:"accepted_candidates"`
	RejectedCandidates   int     `json:"rejected_candidates"`
	StartFitness         float64 `json:"start_fitness"`
	FinalFitness         float64 `json:"final_fitness"`
}

type Tuner interface {
	Name() string
	Tune(ctx context.Context, p model.Params, bounds model.Bounds, attempts int, fitness FitnessFn) (model.Params, TuneReport, error)
}

package fitness

import (
	"context"
	"errors"
	"math"
	"testing"

	"bioevo/internal/model"
	"bioevo/internal/tissue"
)

func ivermectinEvaluator(t *testing.T, targetParams model.Params) *Evaluator {
	t.Helper()
	gen, err := tissue.NewGenerator(tissue.IvermectinGrid())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	target, err := gen.Generate(context.Background(), targetParams)
	if err != nil {
		t.Fatalf("generate target: %v", err)
	}
	eval, err := NewEvaluator(gen, target, model.NarrowBounds, Options{})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return eval
}

func TestEvaluateBaselineAgainstOwnTargetIsZero(t *testing.T) {
	eval := ivermectinEvaluator(t, model.Baseline)
	mse, err := eval.Evaluate(context.Background(), model.Baseline)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if mse > 1e-20 {
		t.Fatalf("expected ~0 mse, got %v", mse)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	eval := ivermectinEvaluator(t, model.Baseline)
	p := model.Params{K1: 0.8, K2: 1.7, K3: 1.4}
	first, err := eval.Evaluate(context.Background(), p)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if first <= 0 {
		t.Fatalf("expected positive mse for a different vector, got %v", first)
	}
	for i := 0; i < 5; i++ {
		got, err := eval.Evaluate(context.Background(), p)
		if err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("evaluation %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestEvaluateRejectsMalformedParams(t *testing.T) {
	eval := ivermectinEvaluator(t, model.Baseline)
	for _, p := range []model.Params{
		{K1: math.NaN(), K2: 1, K3: 1},
		{K1: 1, K2: math.Inf(1), K3: 1},
		{K1: 1, K2: 1, K3: 0.1},
		{K1: 2.5, K2: 1, K3: 1},
	} {
		if _, err := eval.Evaluate(context.Background(), p); !errors.Is(err, model.ErrInvalidParams) {
			t.Fatalf("expected ErrInvalidParams for %+v, got %v", p, err)
		}
	}
}

func TestNewEvaluatorRejectsShapeMismatch(t *testing.T) {
	gen := tissue.MeanField{Rows: 4, Cols: 4}
	_, err := NewEvaluator(gen, model.FilledGrid(4, 5, 1), model.WideBounds, Options{})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	row := model.NewSequence(4)
	if _, err := NewEvaluator(gen, row, model.WideBounds, Options{}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch without tiling, got %v", err)
	}
	if _, err := NewEvaluator(gen, model.NewSequence(5), model.WideBounds, Options{TileTarget: true}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for wrong tiled width, got %v", err)
	}
}

func TestTileTargetBroadcastsRows(t *testing.T) {
	row := model.Pattern{Shape: []int{3}, Values: []float64{1, 1, 1}}
	eval, err := NewEvaluator(tissue.MeanField{Rows: 2, Cols: 3}, row, model.WideBounds, Options{TileTarget: true})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	target := eval.Target()
	if target.Rows() != 2 || target.Cols() != 3 {
		t.Fatalf("unexpected tiled shape: %v", target.Shape)
	}
	mse, err := eval.Evaluate(context.Background(), model.Params{K1: 1, K2: 1, K3: 1})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if mse != 0 {
		t.Fatalf("expected zero mse, got %v", mse)
	}
}

func TestMSE(t *testing.T) {
	a := model.Pattern{Shape: []int{2, 2}, Values: []float64{1, 2, 3, 4}}
	b := model.Pattern{Shape: []int{2, 2}, Values: []float64{1, 0, 3, 0}}
	got, err := MSE(a, b)
	if err != nil {
		t.Fatalf("mse: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	if _, err := MSE(a, model.NewSequence(4)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestNewEvaluatorRejectsNonFiniteTarget(t *testing.T) {
	target := model.FilledGrid(2, 2, 1)
	target.Values[3] = math.NaN()
	if _, err := NewEvaluator(tissue.MeanField{Rows: 2, Cols: 2}, target, model.WideBounds, Options{}); err == nil {
		t.Fatal("expected non-finite target error")
	}
}

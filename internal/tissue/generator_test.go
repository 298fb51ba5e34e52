package tissue

import (
	"context"
	"errors"
	"math"
	"testing"

	"bioevo/internal/cell"
	"bioevo/internal/model"
)

func TestIvermectinGridSplitsLeftAndRight(t *testing.T) {
	gen, err := NewGenerator(IvermectinGrid())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	pattern, err := gen.Generate(context.Background(), model.Baseline)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if pattern.Rows() != 10 || pattern.Cols() != 10 {
		t.Fatalf("unexpected shape: %v", pattern.Shape)
	}
	left, right := pattern.At(3, 0), pattern.At(3, 9)
	if math.Abs(right-math.Exp(-1)) > 1e-6 {
		t.Fatalf("right half should follow exp(-k3*t): got %v", right)
	}
	if math.Abs(left-math.Exp(-2)) > 1e-6 {
		t.Fatalf("left half should decay twice as fast: got %v", left)
	}
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			want := right
			if c < 5 {
				want = left
			}
			if pattern.At(r, c) != want {
				t.Fatalf("cell (%d,%d)=%v want %v", r, c, pattern.At(r, c), want)
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	gen, err := NewGenerator(IvermectinGrid())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	p := model.Params{K1: 0.7, K2: 1.3, K3: 1.9}
	a, err := gen.Generate(context.Background(), p)
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	b, err := gen.Generate(context.Background(), p)
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Fatalf("value %d differs: %v vs %v", i, a.Values[i], b.Values[i])
		}
	}
}

func TestDepolarizedSequenceIsOneDimensional(t *testing.T) {
	gen, err := NewGenerator(DepolarizedSequence())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	if shape := gen.Shape(); len(shape) != 1 || shape[0] != 10 {
		t.Fatalf("unexpected shape: %v", shape)
	}
	pattern, err := gen.Generate(context.Background(), model.Params{K1: 1, K2: 0, K3: 0.01})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if pattern.Dims() != 1 || pattern.Len() != 10 {
		t.Fatalf("expected 10-cell sequence, got %v", pattern.Shape)
	}
	want := -40 * math.Exp(-1)
	if math.Abs(pattern.Values[0]-want) > 1e-4 {
		t.Fatalf("expected %v, got %v", want, pattern.Values[0])
	}
}

func TestCoupledSheetEmitsFramesAndStaysFinite(t *testing.T) {
	gen, err := NewGenerator(CoupledSheet())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	if gen.Name() != "tissue_coupled" {
		t.Fatalf("unexpected name: %s", gen.Name())
	}
	var steps []int
	pattern, err := gen.GenerateFrames(context.Background(), model.Params{K1: 1, K2: 0.1, K3: 0.01}, 100, func(step int, _ float64, v model.Pattern) error {
		if v.Len() != 100 {
			t.Fatalf("frame has %d cells", v.Len())
		}
		steps = append(steps, step)
		return nil
	})
	if err != nil {
		t.Fatalf("generate frames: %v", err)
	}
	want := []int{0, 100, 200, 300, 400, 499}
	if len(steps) != len(want) {
		t.Fatalf("unexpected frame steps: %v", steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("unexpected frame steps: %v", steps)
		}
	}
	if idx := pattern.Finite(); idx != -1 {
		t.Fatalf("non-finite value at %d", idx)
	}
	if pattern.At(5, 0) <= pattern.At(5, 9) {
		t.Fatalf("slowed left edge should hold more voltage: left=%v right=%v", pattern.At(5, 0), pattern.At(5, 9))
	}
}

func TestCoupledUniformTissueMatchesEuler(t *testing.T) {
	cfg := CoupledSheet()
	cfg.Rule = Uniform(1)
	gen, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	p := model.Params{K1: 1, K2: 0.1, K3: 0.01}
	pattern, err := gen.Generate(context.Background(), p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s := cfg.Initial
	for i := 1; i < cfg.Grid.Points; i++ {
		s = cell.EulerStep(cell.RatesFromParams(p), s, cfg.Grid.Step(), 0)
	}
	for i, v := range pattern.Values {
		if math.Abs(v-s.V) > 1e-12 {
			t.Fatalf("cell %d: got %v want %v", i, v, s.V)
		}
	}
}

func TestCoupledReportsNonFinite(t *testing.T) {
	cfg := CoupledSheet()
	cfg.Rule = Uniform(1)
	gen, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	_, err = gen.Generate(context.Background(), model.Params{K1: 1, K2: 0.1, K3: -1e6})
	if !errors.Is(err, cell.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	gen, err := NewGenerator(IvermectinGrid())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, model.Baseline); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	cfg := IvermectinGrid()
	cfg.Rows = 0
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatal("expected dimension error")
	}
	cfg = DepolarizedSequence()
	cfg.Rows = 2
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatal("expected 1D rows error")
	}
	cfg = IvermectinGrid()
	cfg.Rule = Uniform(-1)
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatal("expected negative multiplier error")
	}
	cfg = IvermectinGrid()
	cfg.Grid.Points = 1
	if _, err := NewGenerator(cfg); !errors.Is(err, cell.ErrInvalidGrid) {
		t.Fatalf("expected ErrInvalidGrid, got %v", err)
	}
}

func TestMeanFieldFillsAverage(t *testing.T) {
	gen := MeanField{Rows: 16, Cols: 16}
	pattern, err := gen.Generate(context.Background(), model.Params{K1: 0.5, K2: 1, K3: 1.5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, v := range pattern.Values {
		if v != 1 {
			t.Fatalf("expected 1 everywhere, got %v", v)
		}
	}
	if _, err := (MeanField{}).Generate(context.Background(), model.Baseline); err == nil {
		t.Fatal("expected dimension error")
	}
}

package dose

import (
	"context"
	"errors"
	"math"
	"testing"

	"bioevo/internal/cell"
)

func TestHillFractionAtIC50IsHalf(t *testing.T) {
	f, err := Amiloride.Fraction(Amiloride.IC50)
	if err != nil {
		t.Fatalf("fraction: %v", err)
	}
	if math.Abs(f-0.5) > 1e-12 {
		t.Fatalf("expected 0.5 at ic50, got %v", f)
	}
	zero, err := Amiloride.Fraction(0)
	if err != nil || zero != 0 {
		t.Fatalf("expected 0 at zero concentration, got %v err=%v", zero, err)
	}
	if _, err := Amiloride.Fraction(-1); !errors.Is(err, ErrInvalidConcentration) {
		t.Fatalf("expected ErrInvalidConcentration, got %v", err)
	}
}

func TestResponseMultiplierModes(t *testing.T) {
	block := Response{Hill: Amiloride, Mode: Block}
	m, err := block.Multiplier(Amiloride.IC50)
	if err != nil {
		t.Fatalf("block multiplier: %v", err)
	}
	if math.Abs(m-0.5) > 1e-12 {
		t.Fatalf("expected block multiplier 0.5, got %v", m)
	}

	open := Response{Hill: Hill{IC50: 1, N: 1}, Mode: Potentiate, MaxFold: 3}
	m, err = open.Multiplier(1)
	if err != nil {
		t.Fatalf("potentiate multiplier: %v", err)
	}
	if math.Abs(m-2) > 1e-12 {
		t.Fatalf("expected potentiate multiplier 2, got %v", m)
	}

	if err := (Response{Hill: Amiloride, Mode: "bogus"}).Validate(); err == nil {
		t.Fatal("expected unsupported mode error")
	}
	if err := (Response{Hill: Amiloride, Mode: Potentiate, MaxFold: 0.5}).Validate(); err == nil {
		t.Fatal("expected max fold error")
	}
}

func TestSweepVoltageRisesWithBlockerConcentration(t *testing.T) {
	concs := LogSpace(-8, -3, 6)
	if len(concs) != 6 || math.Abs(concs[0]-1e-8) > 1e-20 || math.Abs(concs[5]-1e-3) > 1e-15 {
		t.Fatalf("unexpected logspace: %v", concs)
	}
	points, err := Sweep(context.Background(), cell.Integrator{Substeps: 2}, cell.BaselineRates, cell.Resting,
		cell.TimeGrid{Start: 0, End: 50, Points: 200}, Response{Hill: Amiloride, Mode: Block}, concs)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for i := 1; i < len(points); i++ {
		if points[i].V < points[i-1].V {
			t.Fatalf("steady-state voltage should not fall with more blocker: %+v", points)
		}
	}
	if points[len(points)-1].V <= points[0].V {
		t.Fatalf("expected a visible dose effect: %+v", points)
	}
}

func TestSweepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, cell.Integrator{}, cell.BaselineRates, cell.Resting, cell.ShortGrid, Response{Hill: Amiloride, Mode: Block}, []float64{1e-6})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOneCompartmentBlockadeDecays(t *testing.T) {
	times := []float64{0, 6, 12, 24}
	points, err := OralPropranolol.Blockade(times, Propranolol)
	if err != nil {
		t.Fatalf("blockade: %v", err)
	}
	wantC0 := 0.26 * 80e3 / (5.11 * 70)
	if math.Abs(points[0].Conc-wantC0) > 1e-9 {
		t.Fatalf("unexpected c0: got %v want %v", points[0].Conc, wantC0)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Conc >= points[i-1].Conc || points[i].Effect >= points[i-1].Effect {
			t.Fatalf("expected monotone decay: %+v", points)
		}
	}
	if err := (OneCompartment{Dose: 1, Bioavailability: 2, Vd: 1}).Validate(); err == nil {
		t.Fatal("expected bioavailability validation error")
	}
}

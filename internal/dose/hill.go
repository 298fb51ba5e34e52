// Package dose maps drug concentrations to decay-rate multipliers.
package dose

import (
	"context"
	"errors"
	"fmt"
	"math"

	"bioevo/internal/cell"
)

var ErrInvalidConcentration = errors.New("invalid concentration")

// Hill is a saturating dose-response curve.
type Hill struct {
	IC50 float64 `json:"ic50"`
	N    float64 `json:"n"`
}

var (
	// Amiloride is the Na+ channel blocker used in the dose sweep.
	Amiloride = Hill{IC50: 1e-5, N: 1.0}
	// AmilorideCurated is the literature fit used for the curated sweep.
	AmilorideCurated = Hill{IC50: 5e-6, N: 1.2}
	// Propranolol is the receptor blockade curve for the PK time course.
	Propranolol = Hill{IC50: 30.0, N: 1.5}
)

func (h Hill) Validate() error {
	if !(h.IC50 > 0) || math.IsInf(h.IC50, 0) {
		return fmt.Errorf("ic50 must be > 0, got %v", h.IC50)
	}
	if !(h.N > 0) || math.IsInf(h.N, 0) {
		return fmt.Errorf("hill coefficient must be > 0, got %v", h.N)
	}
	return nil
}

// Fraction is the fractional effect in [0, 1).
func (h Hill) Fraction(conc float64) (float64, error) {
	if math.IsNaN(conc) || conc < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidConcentration, conc)
	}
	if conc == 0 {
		return 0, nil
	}
	if math.IsInf(conc, 1) {
		return 1, nil
	}
	cn := math.Pow(conc, h.N)
	return cn / (math.Pow(h.IC50, h.N) + cn), nil
}

type Mode string

const (
	// Block scales decay down as the channel closes.
	Block Mode = "block"
	// Potentiate scales decay up toward MaxFold (channel opener).
	Potentiate Mode = "potentiate"
)

// Response turns a Hill fraction into a k3 multiplier.
type Response struct {
	Hill    Hill    `json:"hill"`
	Mode    Mode    `json:"mode"`
	MaxFold float64 `json:"max_fold,omitempty"`
}

func (r Response) Validate() error {
	if err := r.Hill.Validate(); err != nil {
		return err
	}
	switch r.Mode {
	case Block:
	case Potentiate:
		if !(r.MaxFold >= 1) || math.IsInf(r.MaxFold, 0) {
			return fmt.Errorf("potentiate max fold must be >= 1, got %v", r.MaxFold)
		}
	default:
		return fmt.Errorf("unsupported response mode: %q", r.Mode)
	}
	return nil
}

func (r Response) Multiplier(conc float64) (float64, error) {
	f, err := r.Hill.Fraction(conc)
	if err != nil {
		return 0, err
	}
	if r.Mode == Potentiate {
		return 1 + (r.MaxFold-1)*f, nil
	}
	return 1 - f, nil
}

// Point is one concentration of a dose sweep.
type Point struct {
	Conc       float64 `json:"conc"`
	Multiplier float64 `json:"multiplier"`
	V          float64 `json:"v"`
}

// Sweep integrates one cell per concentration with k3 scaled by the response
// multiplier and returns the steady-state voltages.
func Sweep(ctx context.Context, in cell.Integrator, rates cell.Rates, y0 cell.State, grid cell.TimeGrid, resp Response, concs []float64) ([]Point, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(concs))
	for _, c := range concs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := resp.Multiplier(c)
		if err != nil {
			return nil, err
		}
		final, err := in.Final(rates.WithDecayScale(m), y0, grid)
		if err != nil {
			return nil, fmt.Errorf("sweep conc=%g: %w", c, err)
		}
		out = append(out, Point{Conc: c, Multiplier: m, V: final.V})
	}
	return out, nil
}

// LogSpace returns n values from 10^lo to 10^hi, evenly spaced in exponent.
func LogSpace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{math.Pow(10, lo)}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = math.Pow(10, lo+float64(i)*step)
	}
	return out
}

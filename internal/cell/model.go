// Package cell integrates the two-state bioelectric cell model.
//
// The state is an intracellular marker X and a normalized membrane voltage V:
//
//	dX/dt = k1*V - k2*X*V
//	dV/dt = -k3*V
//
// Integration uses classical fourth-order Runge-Kutta with a fixed number of
// substeps per output interval, so trajectories are bit-for-bit reproducible.
package cell

import (
	"errors"
	"fmt"
	"math"

	"bioevo/internal/model"
)

var (
	ErrNonFinite   = errors.New("integration produced a non-finite value")
	ErrInvalidGrid = errors.New("invalid time grid")
)

// DefaultSubsteps is the RK4 step count per output interval.
const DefaultSubsteps = 8

// State is one cell's (X, V) pair.
type State struct {
	X float64 `json:"x"`
	V float64 `json:"v"`
}

// Resting is the initial condition used throughout the experiments.
var Resting = State{X: 1, V: 1}

// Rates are the rate constants actually fed to the integrator, after any
// drug or region multiplier has been applied to K3.
type Rates struct {
	K1 float64
	K2 float64
	K3 float64
}

// BaselineRates are the untreated single-cell constants.
var BaselineRates = Rates{K1: 1, K2: 0.1, K3: 0.01}

func RatesFromParams(p model.Params) Rates {
	return Rates{K1: p.K1, K2: p.K2, K3: p.K3}
}

// WithDecayScale returns a copy with K3 multiplied by scale.
func (r Rates) WithDecayScale(scale float64) Rates {
	r.K3 *= scale
	return r
}

// Derivatives evaluates the right-hand side at s.
func Derivatives(r Rates, s State) State {
	return State{
		X: r.K1*s.V - r.K2*s.X*s.V,
		V: -r.K3 * s.V,
	}
}

func (s State) finite() bool {
	return !math.IsNaN(s.X) && !math.IsInf(s.X, 0) && !math.IsNaN(s.V) && !math.IsInf(s.V, 0)
}

// TimeGrid is an evenly spaced grid including both endpoints.
type TimeGrid struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Points int     `json:"points"`
}

var (
	// ShortGrid is the single-cell and dose-sweep horizon.
	ShortGrid = TimeGrid{Start: 0, End: 50, Points: 1000}
	// LongGrid is the tissue convergence horizon.
	LongGrid = TimeGrid{Start: 0, End: 100, Points: 2000}
)

func (g TimeGrid) Validate() error {
	if g.Points < 2 {
		return fmt.Errorf("%w: points must be >= 2, got %d", ErrInvalidGrid, g.Points)
	}
	if math.IsNaN(g.Start) || math.IsNaN(g.End) || math.IsInf(g.Start, 0) || math.IsInf(g.End, 0) {
		return fmt.Errorf("%w: endpoints must be finite", ErrInvalidGrid)
	}
	if g.End <= g.Start {
		return fmt.Errorf("%w: end (%v) must be > start (%v)", ErrInvalidGrid, g.End, g.Start)
	}
	return nil
}

// Step is the spacing between consecutive grid points.
func (g TimeGrid) Step() float64 {
	return (g.End - g.Start) / float64(g.Points-1)
}

func (g TimeGrid) At(i int) float64 {
	if i == g.Points-1 {
		return g.End
	}
	return g.Start + float64(i)*g.Step()
}

func (g TimeGrid) Times() []float64 {
	out := make([]float64, g.Points)
	for i := range out {
		out[i] = g.At(i)
	}
	return out
}

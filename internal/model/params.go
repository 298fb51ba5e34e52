package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams reports a malformed parameter vector (non-finite or out of bounds).
var ErrInvalidParams = errors.New("invalid parameter vector")

// ParamCount is the dimensionality of the rate-constant search space.
const ParamCount = 3

// Params holds the three rate constants of the cell model: production (K1),
// interaction (K2) and decay (K3).
type Params struct {
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
}

// Baseline is the reference vector used to build self-consistent targets.
var Baseline = Params{K1: 1, K2: 1, K3: 1}

func (p Params) Slice() []float64 {
	return []float64{p.K1, p.K2, p.K3}
}

func ParamsFromSlice(values []float64) (Params, error) {
	if len(values) != ParamCount {
		return Params{}, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidParams, ParamCount, len(values))
	}
	return Params{K1: values[0], K2: values[1], K3: values[2]}, nil
}

func (p Params) String() string {
	return fmt.Sprintf("[k1=%.4f k2=%.4f k3=%.4f]", p.K1, p.K2, p.K3)
}

// Bounds constrains every gene to the closed interval [Lower, Upper].
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

var (
	// WideBounds matches the [0, 2] search box of the tissue fits.
	WideBounds = Bounds{Lower: 0, Upper: 2}
	// NarrowBounds matches the [0.5, 2] search box of the ivermectin fit.
	NarrowBounds = Bounds{Lower: 0.5, Upper: 2}
)

func (b Bounds) Check() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
		return fmt.Errorf("bounds must be finite: [%v, %v]", b.Lower, b.Upper)
	}
	if b.Lower > b.Upper {
		return fmt.Errorf("bounds lower must be <= upper: [%v, %v]", b.Lower, b.Upper)
	}
	return nil
}

// Validate rejects NaN, infinite and out-of-range genes.
func (b Bounds) Validate(p Params) error {
	for i, v := range p.Slice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: k%d is not finite (%v)", ErrInvalidParams, i+1, v)
		}
		if v < b.Lower || v > b.Upper {
			return fmt.Errorf("%w: k%d=%v outside [%v, %v]", ErrInvalidParams, i+1, v, b.Lower, b.Upper)
		}
	}
	return nil
}

func (b Bounds) Clip(p Params) Params {
	return Params{K1: b.clip(p.K1), K2: b.clip(p.K2), K3: b.clip(p.K3)}
}

func (b Bounds) clip(v float64) float64 {
	if v < b.Lower {
		return b.Lower
	}
	if v > b.Upper {
		return b.Upper
	}
	return v
}

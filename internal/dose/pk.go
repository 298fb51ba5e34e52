package dose

import (
	"fmt"
	"math"
)

// OneCompartment is first-order elimination from a single plasma compartment.
type OneCompartment struct {
	Dose            float64 `json:"dose"`
	Bioavailability float64 `json:"bioavailability"`
	Vd              float64 `json:"vd"`
	Ke              float64 `json:"ke"`
}

// OralPropranolol is an illustrative 80 mg oral dose (micrograms, litres, 1/h).
var OralPropranolol = OneCompartment{Dose: 80e3, Bioavailability: 0.26, Vd: 5.11 * 70, Ke: 0.231}

func (m OneCompartment) Validate() error {
	if !(m.Dose >= 0) {
		return fmt.Errorf("dose must be >= 0, got %v", m.Dose)
	}
	if !(m.Bioavailability >= 0 && m.Bioavailability <= 1) {
		return fmt.Errorf("bioavailability must be in [0, 1], got %v", m.Bioavailability)
	}
	if !(m.Vd > 0) {
		return fmt.Errorf("volume of distribution must be > 0, got %v", m.Vd)
	}
	if !(m.Ke >= 0) {
		return fmt.Errorf("elimination rate must be >= 0, got %v", m.Ke)
	}
	return nil
}

func (m OneCompartment) InitialConcentration() float64 {
	return m.Bioavailability * m.Dose / m.Vd
}

func (m OneCompartment) ConcentrationAt(t float64) float64 {
	return m.InitialConcentration() * math.Exp(-m.Ke*t)
}

// BlockadePoint is one sample of a plasma concentration / effect time course.
type BlockadePoint struct {
	Time   float64 `json:"time"`
	Conc   float64 `json:"conc"`
	Effect float64 `json:"effect"`
}

// Blockade samples concentration and Hill effect at each time.
func (m OneCompartment) Blockade(times []float64, h Hill) ([]BlockadePoint, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	out := make([]BlockadePoint, 0, len(times))
	for _, t := range times {
		c := m.ConcentrationAt(t)
		e, err := h.Fraction(c)
		if err != nil {
			return nil, err
		}
		out = append(out, BlockadePoint{Time: t, Conc: c, Effect: e})
	}
	return out, nil
}

package tissue

import (
	"context"
	"fmt"

	"bioevo/internal/cell"
	"bioevo/internal/model"
)

var (
	// IvermectinSpec is the 10x10 tissue whose left half sees doubled decay.
	IvermectinSpec = Spec{
		Rows:       10,
		Cols:       10,
		Grid:       cell.LongGrid,
		Initial:    cell.Resting,
		RateScale:  0.01,
		Rule:       "left_half",
		Multiplier: 2,
	}
	// SequenceSpec is a row of ten uncoupled cells started far from rest.
	SequenceSpec = Spec{
		Rows:       1,
		Cols:       10,
		OneD:       true,
		Grid:       cell.TimeGrid{Start: 0, End: 100, Points: 200},
		Initial:    cell.State{X: 1, V: -40},
		Rule:       "uniform",
		Multiplier: 1,
	}
	// CoupledSpec is the diffusively coupled 10x10 tissue with a slowed left half.
	CoupledSpec = Spec{
		Rows:       10,
		Cols:       10,
		Grid:       cell.TimeGrid{Start: 0, End: 50, Points: 500},
		Initial:    cell.Resting,
		Rule:       "left_half",
		Multiplier: 0.1,
		Coupling:   0.1,
	}
)

func IvermectinGrid() Config { return mustConfig(IvermectinSpec) }

func DepolarizedSequence() Config { return mustConfig(SequenceSpec) }

func CoupledSheet() Config { return mustConfig(CoupledSpec) }

func mustConfig(s Spec) Config {
	cfg, err := s.Config()
	if err != nil {
		panic(err)
	}
	return cfg
}

// PresetSpec resolves a named tissue configuration.
func PresetSpec(name string) (Spec, error) {
	switch name {
	case "ivermectin":
		return IvermectinSpec, nil
	case "sequence":
		return SequenceSpec, nil
	case "coupled":
		return CoupledSpec, nil
	default:
		return Spec{}, fmt.Errorf("unsupported tissue preset: %s", name)
	}
}

func Preset(name string) (Config, error) {
	spec, err := PresetSpec(name)
	if err != nil {
		return Config{}, err
	}
	return spec.Config()
}

// MeanField is a placeholder generator that fills every cell with the
// parameter mean. It is cheap and its optimum for an all-ones target is
// the line k1+k2+k3 = 3.
type MeanField struct {
	Rows int
	Cols int
}

func (MeanField) Name() string { return "mean_field" }

func (m MeanField) Shape() []int { return []int{m.Rows, m.Cols} }

func (m MeanField) Generate(ctx context.Context, p model.Params) (model.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return model.Pattern{}, err
	}
	if m.Rows <= 0 || m.Cols <= 0 {
		return model.Pattern{}, fmt.Errorf("mean field dimensions must be > 0, got %dx%d", m.Rows, m.Cols)
	}
	return model.FilledGrid(m.Rows, m.Cols, (p.K1+p.K2+p.K3)/3), nil
}

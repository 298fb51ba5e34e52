package tissue

import (
	"fmt"

	"bioevo/internal/cell"
)

// Spec is the serializable form of Config. The rule is either a named
// built-in or, when RuleExpr is set, an expression for ParseRule.
type Spec struct {
	Rows         int           `json:"rows"`
	Cols         int           `json:"cols"`
	OneD         bool          `json:"one_d,omitempty"`
	Grid         cell.TimeGrid `json:"grid"`
	Initial      cell.State    `json:"initial"`
	RateScale    float64       `json:"rate_scale,omitempty"`
	Rule         string        `json:"rule,omitempty"`
	RuleExpr     string        `json:"rule_expr,omitempty"`
	Multiplier   float64       `json:"multiplier,omitempty"`
	LeadingCells int           `json:"leading_cells,omitempty"`
	Coupling     float64       `json:"coupling,omitempty"`
	Substeps     int           `json:"substeps,omitempty"`
}

// Config resolves the rule. A zero Multiplier means 1.
func (s Spec) Config() (Config, error) {
	var (
		rule Rule
		err  error
	)
	if s.RuleExpr != "" {
		rule, err = ParseRule(s.RuleExpr)
	} else {
		m := s.Multiplier
		if m == 0 {
			m = 1
		}
		rule, err = RuleFromName(s.Rule, m, s.LeadingCells)
	}
	if err != nil {
		return Config{}, err
	}
	return Config{
		Rows:       s.Rows,
		Cols:       s.Cols,
		OneD:       s.OneD,
		Grid:       s.Grid,
		Initial:    s.Initial,
		RateScale:  s.RateScale,
		Rule:       rule,
		Coupling:   s.Coupling,
		Integrator: cell.Integrator{Substeps: s.Substeps},
	}, nil
}

// NewGeneratorFromSpec is NewGenerator over a resolved Spec.
func NewGeneratorFromSpec(s Spec) (*Generator, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, fmt.Errorf("tissue spec: %w", err)
	}
	return NewGenerator(cfg)
}

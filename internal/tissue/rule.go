package tissue

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/PaesslerAG/gval"
)

// Rule returns the k3 multiplier for the cell at (row, col).
type Rule func(row, col, rows, cols int) float64

// Uniform applies the same multiplier everywhere.
func Uniform(m float64) Rule {
	return func(_, _, _, _ int) float64 { return m }
}

// LeftHalf applies m to columns left of cols/2 and 1 elsewhere.
func LeftHalf(m float64) Rule {
	return func(_, col, _, cols int) float64 {
		if col < cols/2 {
			return m
		}
		return 1
	}
}

// LeadingCells applies m to the first n cells in row-major order.
func LeadingCells(n int, m float64) Rule {
	return func(row, col, _, cols int) float64 {
		if row*cols+col < n {
			return m
		}
		return 1
	}
}

var ruleLanguage = gval.Full()

// ParseRule compiles an expression over row, col, rows, cols, mid_row and
// mid_col (integer halves) into a Rule, e.g. "col < mid_col ? 2 : 1".
// Evaluation failures inside the returned Rule yield NaN, which the
// generator rejects when it builds its multiplier map.
func ParseRule(expr string) (Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("rule expression is required")
	}
	eval, err := ruleLanguage.NewEvaluable(expr)
	if err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", expr, err)
	}
	rule := func(row, col, rows, cols int) float64 {
		v, err := evalMultiplier(eval, row, col, rows, cols)
		if err != nil {
			return math.NaN()
		}
		return v
	}
	if _, err := evalMultiplier(eval, 0, 0, 1, 1); err != nil {
		return nil, fmt.Errorf("rule %q: %w", expr, err)
	}
	return rule, nil
}

func evalMultiplier(eval gval.Evaluable, row, col, rows, cols int) (float64, error) {
	out, err := eval(context.Background(), map[string]any{
		"row":     float64(row),
		"col":     float64(col),
		"rows":    float64(rows),
		"cols":    float64(cols),
		"mid_row": float64(rows / 2),
		"mid_col": float64(cols / 2),
	})
	if err != nil {
		return 0, err
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("rule must evaluate to a number, got %T", out)
	}
}

// RuleFromName resolves the named built-in rules used by the CLI.
func RuleFromName(name string, multiplier float64, leading int) (Rule, error) {
	switch name {
	case "", "uniform":
		return Uniform(multiplier), nil
	case "left_half":
		return LeftHalf(multiplier), nil
	case "leading":
		if leading < 0 {
			return nil, fmt.Errorf("leading cell count must be >= 0")
		}
		return LeadingCells(leading, multiplier), nil
	default:
		return nil, fmt.Errorf("unsupported rule: %s", name)
	}
}

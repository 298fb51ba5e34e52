package tissue

import (
	"testing"

	"bioevo/internal/cell"
)

func TestParseRuleMatchesBuiltin(t *testing.T) {
	rule, err := ParseRule("col < mid_col ? 2 : 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	builtin := LeftHalf(2)
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			if got, want := rule(r, c, 10, 10), builtin(r, c, 10, 10); got != want {
				t.Fatalf("(%d,%d): got %v want %v", r, c, got, want)
			}
		}
	}
}

func TestParseRuleArithmetic(t *testing.T) {
	rule, err := ParseRule("1 + row / rows")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := rule(5, 0, 10, 10); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
}

func TestParseRuleRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "col <", "col < 3"} {
		if _, err := ParseRule(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestLeadingCells(t *testing.T) {
	rule := LeadingCells(3, 0.5)
	if rule(0, 2, 1, 10) != 0.5 || rule(0, 3, 1, 10) != 1 {
		t.Fatal("leading cell rule mismatch")
	}
	if _, err := RuleFromName("bogus", 1, 0); err == nil {
		t.Fatal("expected unsupported rule error")
	}
}

func TestSpecResolvesRules(t *testing.T) {
	named := Spec{Rows: 2, Cols: 4, Grid: cell.ShortGrid, Rule: "left_half", Multiplier: 3}
	gen, err := NewGeneratorFromSpec(named)
	if err != nil {
		t.Fatalf("named spec: %v", err)
	}
	if m := gen.Multipliers(); m.At(1, 1) != 3 || m.At(1, 2) != 1 {
		t.Fatalf("unexpected multipliers: %v", m.Values)
	}

	expr := named
	expr.RuleExpr = "col < mid_col ? 3 : 1"
	gen, err = NewGeneratorFromSpec(expr)
	if err != nil {
		t.Fatalf("expr spec: %v", err)
	}
	if m := gen.Multipliers(); m.At(0, 0) != 3 || m.At(0, 3) != 1 {
		t.Fatalf("unexpected expression multipliers: %v", m.Values)
	}

	plain := Spec{Rows: 1, Cols: 3, Grid: cell.ShortGrid}
	gen, err = NewGeneratorFromSpec(plain)
	if err != nil {
		t.Fatalf("default spec: %v", err)
	}
	for _, v := range gen.Multipliers().Values {
		if v != 1 {
			t.Fatalf("zero multiplier should default to 1, got %v", v)
		}
	}

	if _, err := NewGeneratorFromSpec(Spec{Rows: 1, Cols: 1, Grid: cell.ShortGrid, Rule: "spiral"}); err == nil {
		t.Fatal("expected unsupported rule error")
	}
	if _, err := PresetSpec("nope"); err == nil {
		t.Fatal("expected unsupported preset error")
	}
}

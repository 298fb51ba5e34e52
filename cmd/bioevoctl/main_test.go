package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bioevo/internal/stats"
)

func TestEvolveThenInspectCommands(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	runs := filepath.Join(base, "runs")
	common := []string{"--store", "memory", "--artifacts-dir", runs}

	args := append([]string{
		"evolve",
		"--generator", "mean_field",
		"--rows", "4",
		"--cols", "4",
		"--pop", "10",
		"--gens", "3",
		"--seed", "9",
		"--workers", "2",
		"--run-id", "cli-run",
		"--verbose",
	}, common...)
	if err := run(ctx, args); err != nil {
		t.Fatalf("evolve command: %v", err)
	}

	entries, err := stats.ListRunIndex(runs)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "cli-run" {
		t.Fatalf("unexpected run index: %+v", entries)
	}
	for _, file := range []string{"config.json", "fitness_history.csv", "best_params.npy", "patterns.png"} {
		if _, err := os.Stat(filepath.Join(runs, "cli-run", file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	for _, cmd := range [][]string{
		{"runs"},
		{"runs", "--json"},
		{"fitness", "--latest"},
		{"hof", "--run-id", "cli-run", "--json"},
		{"verify", "--latest"},
	} {
		if err := run(ctx, append(cmd, common...)); err != nil {
			t.Fatalf("%s command: %v", strings.Join(cmd, " "), err)
		}
	}

	exportDir := filepath.Join(base, "exports")
	if err := run(ctx, append([]string{"export", "--latest", "--out", exportDir}, common...)); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cli-run", "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestSimulationCommandsWriteOutputs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, args := range [][]string{
		{"cell", "--t-end", "10", "--points", "20", "--out", dir},
		{"sweep", "--points", "4", "--out", dir},
		{"sweep", "--drug", "custom", "--ic50", "1e-6", "--hill-n", "2", "--mode", "potentiate", "--max-fold", "3", "--points", "3"},
		{"pk", "--hours", "6", "--points", "7", "--out", dir},
		{"tissue", "--preset", "sequence", "--pattern-out", filepath.Join(dir, "sequence.npy")},
		{"tissue", "--rows", "3", "--cols", "4", "--rule-expr", "col < mid_col ? 2 : 1", "--t-end", "10", "--points", "20", "--heatmap-out", filepath.Join(dir, "rule.png")},
	} {
		if err := run(ctx, args); err != nil {
			t.Fatalf("%s: %v", strings.Join(args, " "), err)
		}
	}
	for _, name := range []string{"trajectory.csv", "trajectory.png", "dose_response.csv", "pk_blockade.png", "sequence.npy", "rule.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestRunRejectsBadInvocations(t *testing.T) {
	ctx := context.Background()
	cases := [][]string{
		nil,
		{"bogus"},
		{"fitness"},
		{"verify", "--run-id", "a", "--latest"},
		{"sweep", "--drug", "aspirin"},
		{"runs", "--limit", "0"},
	}
	for _, args := range cases {
		if err := run(ctx, args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestEvolveKeepsExplicitZeroFlagsAndSingleBound(t *testing.T) {
	ctx := context.Background()
	runs := filepath.Join(t.TempDir(), "runs")
	args := []string{
		"evolve",
		"--store", "memory",
		"--artifacts-dir", runs,
		"--generator", "mean_field",
		"--rows", "3",
		"--cols", "3",
		"--pop", "6",
		"--gens", "1",
		"--run-id", "zero-sigma",
		"--sigma", "0",
		"--alpha", "0",
		"--indpb", "0",
		"--lower", "0.5",
	}
	if err := run(ctx, args); err != nil {
		t.Fatalf("evolve command: %v", err)
	}
	cfg, ok, err := stats.ReadRunConfig(runs, "zero-sigma")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Sigma != 0 || cfg.Alpha != 0 || cfg.Indpb != 0 {
		t.Fatalf("explicit zero flags were replaced: sigma=%v alpha=%v indpb=%v", cfg.Sigma, cfg.Alpha, cfg.Indpb)
	}
	if cfg.CXPB != 0.5 || cfg.MUTPB != 0.2 {
		t.Fatalf("unset flags should keep their defaults: cxpb=%v mutpb=%v", cfg.CXPB, cfg.MUTPB)
	}
	if cfg.Lower != 0.5 || cfg.Upper != 2 {
		t.Fatalf("expected bounds [0.5, 2], got [%v, %v]", cfg.Lower, cfg.Upper)
	}
}

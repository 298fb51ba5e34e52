//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"bioevo/internal/model"
)

func TestSQLiteStoreRunAndStatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "bioevo.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.SaveRun(ctx, sampleRun("old", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatalf("save old: %v", err)
	}
	updated := sampleRun("new", "2026-02-01T00:00:00Z")
	if err := store.SaveRun(ctx, updated); err != nil {
		t.Fatalf("save new: %v", err)
	}
	updated.BestFitness = 0.0005
	if err := store.SaveRun(ctx, updated); err != nil {
		t.Fatalf("upsert new: %v", err)
	}

	run, ok, err := store.GetRun(ctx, "new")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.BestFitness != 0.0005 {
		t.Fatalf("expected upserted fitness, got %v", run.BestFitness)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" {
		t.Fatalf("expected newest first, got %+v", runs)
	}

	stats := []model.GenerationStats{{Generation: 0, BestMSE: 0.4, BestSoFarMSE: 0.4}}
	if err := store.SaveGenerationStats(ctx, "new", stats); err != nil {
		t.Fatalf("save stats: %v", err)
	}
	loaded, ok, err := store.GetGenerationStats(ctx, "new")
	if err != nil || !ok || len(loaded) != 1 || loaded[0].BestMSE != 0.4 {
		t.Fatalf("unexpected stats: %+v ok=%t err=%v", loaded, ok, err)
	}

	if _, ok, err := store.GetHallOfFame(ctx, "new"); err != nil || ok {
		t.Fatalf("expected no hall of fame yet: ok=%t err=%v", ok, err)
	}
	entries := []model.HallOfFameEntry{{Rank: 1, Params: model.Baseline, Fitness: 0.0005}}
	if err := store.SaveHallOfFame(ctx, "new", entries); err != nil {
		t.Fatalf("save hall of fame: %v", err)
	}
	hof, ok, err := store.GetHallOfFame(ctx, "new")
	if err != nil || !ok || hof[0].Params != model.Baseline {
		t.Fatalf("unexpected hall of fame: %+v ok=%t err=%v", hof, ok, err)
	}
}

func TestSQLiteStorePatternRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "bioevo.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	record := model.PatternRecord{VersionedRecord: CurrentVersion(), Name: "run/target", Pattern: model.FilledGrid(3, 2, 0.5)}
	if err := store.SavePattern(ctx, record); err != nil {
		t.Fatalf("save pattern: %v", err)
	}
	loaded, ok, err := store.GetPattern(ctx, "run/target")
	if err != nil || !ok {
		t.Fatalf("get pattern: ok=%t err=%v", ok, err)
	}
	if !loaded.Pattern.SameShape(record.Pattern) || loaded.Pattern.Values[5] != 0.5 {
		t.Fatalf("unexpected pattern: %+v", loaded.Pattern)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "bioevo.db"))
	if _, _, err := store.GetRun(context.Background(), "x"); err == nil {
		t.Fatal("expected init error")
	}
}

package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"bioevo/internal/cell"
	"bioevo/internal/evo"
	"bioevo/internal/model"
)

func TestInstrumentCountsOutcomes(t *testing.T) {
	rec := NewRecorder("run-1")
	calls := 0
	eval := rec.Instrument(evo.EvaluatorFunc(func(_ context.Context, p model.Params) (float64, error) {
		calls++
		if p.K3 < 0 {
			return 0, fmt.Errorf("cell 3: %w", cell.ErrNonFinite)
		}
		return p.K1, nil
	}))

	if got, err := eval.Evaluate(context.Background(), model.Params{K1: 0.25}); err != nil || got != 0.25 {
		t.Fatalf("unexpected passthrough: %v %v", got, err)
	}
	if _, err := eval.Evaluate(context.Background(), model.Params{K3: -1}); err == nil {
		t.Fatal("expected error passthrough")
	}
	rec.ObserveGeneration(model.GenerationStats{Generation: 0, BestSoFarMSE: 0.125})

	var buf bytes.Buffer
	if err := rec.WriteSnapshot(&buf); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	text := buf.String()
	for _, want := range []string{
		`bioevo_evaluations_total{outcome="ok",run_id="run-1"} 1`,
		`bioevo_evaluations_total{outcome="non_finite",run_id="run-1"} 1`,
		`bioevo_generations_total{run_id="run-1"} 1`,
		`bioevo_best_so_far_mse{run_id="run-1"} 0.125`,
		`bioevo_evaluation_duration_seconds_count{run_id="run-1"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("snapshot missing %q:\n%s", want, text)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 inner calls, got %d", calls)
	}
}

func TestWriteSnapshotFile(t *testing.T) {
	rec := NewRecorder("run-2")
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := rec.WriteSnapshotFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "# TYPE bioevo_generations_total counter") {
		t.Fatalf("unexpected snapshot:\n%s", data)
	}
}

func TestServeExposesMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := NewRecorder("run-3")
	rec.ObserveGeneration(model.GenerationStats{BestSoFarMSE: 1})

	addr, stop, err := rec.Serve(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "bioevo_generations_total") {
		t.Fatalf("unexpected response %d:\n%s", resp.StatusCode, body)
	}
}

func TestServeStopReleasesGoroutinesWhileContextLive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := NewRecorder("run-4")
	before := runtime.NumGoroutine()

	addr, stop, err := rec.Serve(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines still running after stop: before=%d now=%d", before, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ctx.Err() != nil {
		t.Fatalf("context should still be live")
	}
	if _, err := http.Get("http://" + addr + "/metrics"); err == nil {
		t.Fatalf("expected listener on %s to be closed", addr)
	}
}

// Package telemetry records run metrics in a private Prometheus registry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"bioevo/internal/cell"
	"bioevo/internal/evo"
	"bioevo/internal/model"
)

type Recorder struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	generations prometheus.Counter
	bestSoFar   prometheus.Gauge
	evalSeconds prometheus.Histogram
}

// NewRecorder labels every series with the run id.
func NewRecorder(runID string) *Recorder {
	labels := prometheus.Labels{"run_id": runID}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bioevo_evaluations_total",
			Help:        "Fitness evaluations by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bioevo_generations_total",
			Help:        "Completed generations, including the initial population.",
			ConstLabels: labels,
		}),
		bestSoFar: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "bioevo_best_so_far_mse",
			Help:        "Lowest MSE seen so far.",
			ConstLabels: labels,
		}),
		evalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "bioevo_evaluation_duration_seconds",
			Help:        "Wall time of one fitness evaluation.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	r.registry.MustRegister(r.evaluations, r.generations, r.bestSoFar, r.evalSeconds)
	r.bestSoFar.Set(math.NaN())
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Instrument wraps an evaluator so every call is timed and counted.
func (r *Recorder) Instrument(next evo.Evaluator) evo.Evaluator {
	return evo.EvaluatorFunc(func(ctx context.Context, p model.Params) (float64, error) {
		start := time.Now()
		fitness, err := next.Evaluate(ctx, p)
		r.evalSeconds.Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			r.evaluations.WithLabelValues("ok").Inc()
		case errors.Is(err, cell.ErrNonFinite):
			r.evaluations.WithLabelValues("non_finite").Inc()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			r.evaluations.WithLabelValues("canceled").Inc()
		default:
			r.evaluations.WithLabelValues("error").Inc()
		}
		return fitness, err
	})
}

// ObserveGeneration is suitable as a monitor OnGeneration callback.
func (r *Recorder) ObserveGeneration(st model.GenerationStats) {
	r.generations.Inc()
	r.bestSoFar.Set(st.BestSoFarMSE)
}

// WriteSnapshot writes the registry in the Prometheus text format.
func (r *Recorder) WriteSnapshot(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) WriteSnapshotFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteSnapshot(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Serve exposes /metrics on addr until ctx is done or the returned stop
// function is called. Stop may be called more than once.
func (r *Recorder) Serve(ctx context.Context, addr string) (string, func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.Close()
		case <-done:
		}
	}()
	var (
		once    sync.Once
		stopErr error
	)
	stop := func() error {
		once.Do(func() {
			close(done)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			stopErr = srv.Shutdown(shutdownCtx)
		})
		return stopErr
	}
	return ln.Addr().String(), stop, nil
}

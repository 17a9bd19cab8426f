package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracing(t *testing.T) (*TracingObserver, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewTracingObserver(tp.Tracer("stepgraph-test"), mp.Meter("stepgraph-test"))
	if err != nil {
		t.Fatalf("NewTracingObserver failed: %v", err)
	}
	return obs, exporter, reader
}

func TestTracingObserverSpans(t *testing.T) {
	obs, exporter, _ := newTestTracing(t)
	drive(obs)

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans (run + 2 steps), got %d", len(spans))
	}

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	run, ok := byName["stepgraph.run wf"]
	if !ok {
		t.Fatalf("missing run span in %v", byName)
	}
	if run.Status.Code != codes.Error {
		t.Fatalf("expected failed run span, got %v", run.Status)
	}

	a := byName["stepgraph.step a"]
	b := byName["stepgraph.step b"]
	if a.Status.Code != codes.Ok || b.Status.Code != codes.Error {
		t.Fatalf("unexpected step statuses: a=%v b=%v", a.Status, b.Status)
	}
	if len(b.Events) == 0 {
		t.Fatalf("expected the step error to be recorded on the span")
	}
	for _, s := range []tracetest.SpanStub{a, b} {
		if s.Parent.SpanID() != run.SpanContext.SpanID() {
			t.Fatalf("step span %q is not a child of the run span", s.Name)
		}
	}
}

func TestTracingObserverMetrics(t *testing.T) {
	obs, _, reader := newTestTracing(t)
	drive(obs)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var executions int64
	var histogramCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if m.Name == metricStepExecutions {
					for _, dp := range data.DataPoints {
						executions += dp.Value
					}
				}
			case metricdata.Histogram[float64]:
				if m.Name == metricStepDuration {
					for _, dp := range data.DataPoints {
						histogramCount += dp.Count
					}
				}
			}
		}
	}
	if executions != 2 {
		t.Fatalf("expected 2 step executions, got %d", executions)
	}
	if histogramCount != 2 {
		t.Fatalf("expected 2 duration samples, got %d", histogramCount)
	}
}

func TestTracingObserverWithoutMeter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	obs, err := NewTracingObserver(tp.Tracer("t"), nil)
	if err != nil {
		t.Fatalf("NewTracingObserver failed: %v", err)
	}

	ctx := context.Background()
	obs.OnRunStart(ctx, testRun)
	obs.OnStepStart(ctx, testRun, "a", 1)
	obs.OnStepCompleted(ctx, testRun, "a", 1, nil, time.Millisecond)
	obs.OnRunCompleted(ctx, testRun, NewRunContext(testRun.ID, testRun.Workflow, nil))

	if got := len(exporter.GetSpans()); got != 2 {
		t.Fatalf("expected 2 spans, got %d", got)
	}
}

func TestTracingObserverRequiresTracer(t *testing.T) {
	if _, err := NewTracingObserver(nil, nil); err == nil {
		t.Fatalf("expected error for nil tracer")
	}
}

func TestTracingObserverIgnoresUnknownSpans(t *testing.T) {
	obs, exporter, _ := newTestTracing(t)
	// Completion without a start must not panic or export anything.
	obs.OnStepCompleted(context.Background(), testRun, "ghost", 1, errors.New("x"), 0)
	obs.OnRunFailed(context.Background(), testRun, NewRunContext("r", "w", nil), errors.New("x"))
	if got := len(exporter.GetSpans()); got != 0 {
		t.Fatalf("expected no spans, got %d", got)
	}
}

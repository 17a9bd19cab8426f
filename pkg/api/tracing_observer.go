package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	metricStepExecutions = "stepgraph.step.executions"
	metricStepDuration   = "stepgraph.step.duration"
)

// TracingObserver exports runs and steps to OpenTelemetry: one span per run,
// one child span per step execution, a step execution counter and a step
// duration histogram (seconds).
type TracingObserver struct {
	tracer     trace.Tracer
	executions metric.Int64Counter
	duration   metric.Float64Histogram

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracingObserver creates a TracingObserver. meter may be nil, in which
// case only spans are produced.
func NewTracingObserver(tracer trace.Tracer, meter metric.Meter) (*TracingObserver, error) {
	if tracer == nil {
		return nil, fmt.Errorf("tracing observer: nil tracer")
	}
	o := &TracingObserver{tracer: tracer, spans: make(map[string]trace.Span)}
	if meter == nil {
		return o, nil
	}

	var err error
	o.executions, err = meter.Int64Counter(metricStepExecutions,
		metric.WithDescription("Number of step body executions."))
	if err != nil {
		return nil, fmt.Errorf("tracing observer: %w", err)
	}
	o.duration, err = meter.Float64Histogram(metricStepDuration,
		metric.WithDescription("Duration of step body executions."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("tracing observer: %w", err)
	}
	return o, nil
}

func runKey(run RunInfo) string { return run.ID }

func stepKey(run RunInfo, stepID string, attempt int) string {
	return fmt.Sprintf("%s/%s/%d", run.ID, stepID, attempt)
}

func (o *TracingObserver) put(key string, span trace.Span) {
	o.mu.Lock()
	o.spans[key] = span
	o.mu.Unlock()
}

func (o *TracingObserver) take(key string) (trace.Span, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	span, ok := o.spans[key]
	delete(o.spans, key)
	return span, ok
}

// parent returns ctx carrying the run span, so step spans nest under it even
// though the engine does not thread observer contexts.
func (o *TracingObserver) parent(ctx context.Context, run RunInfo) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if span, ok := o.spans[runKey(run)]; ok {
		return trace.ContextWithSpan(ctx, span)
	}
	return ctx
}

func (o *TracingObserver) OnRunStart(ctx context.Context, run RunInfo) {
	_, span := o.tracer.Start(ctx, "stepgraph.run "+run.Workflow,
		trace.WithAttributes(
			attribute.String("stepgraph.workflow", run.Workflow),
			attribute.String("stepgraph.run_id", run.ID),
		))
	o.put(runKey(run), span)
}

func (o *TracingObserver) OnRunCompleted(ctx context.Context, run RunInfo, rc *RunContext) {
	span, ok := o.take(runKey(run))
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("stepgraph.steps", rc.Len()))
	span.SetStatus(codes.Ok, "")
	span.End()
}

func (o *TracingObserver) OnRunFailed(ctx context.Context, run RunInfo, rc *RunContext, err error) {
	span, ok := o.take(runKey(run))
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("stepgraph.steps", rc.Len()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

func (o *TracingObserver) OnStepStart(ctx context.Context, run RunInfo, stepID string, attempt int) {
	_, span := o.tracer.Start(o.parent(ctx, run), "stepgraph.step "+stepID,
		trace.WithAttributes(
			attribute.String("stepgraph.workflow", run.Workflow),
			attribute.String("stepgraph.run_id", run.ID),
			attribute.String("stepgraph.step", stepID),
			attribute.Int("stepgraph.attempt", attempt),
		))
	o.put(stepKey(run, stepID, attempt), span)
}

func (o *TracingObserver) OnStepCompleted(ctx context.Context, run RunInfo, stepID string, attempt int, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}

	if span, ok := o.take(stepKey(run, stepID, attempt)); ok {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	attrs := metric.WithAttributes(
		attribute.String("stepgraph.workflow", run.Workflow),
		attribute.String("stepgraph.step", stepID),
		attribute.String("stepgraph.status", status),
	)
	if o.executions != nil {
		o.executions.Add(ctx, 1, attrs)
	}
	if o.duration != nil {
		o.duration.Record(ctx, d.Seconds(), attrs)
	}
}

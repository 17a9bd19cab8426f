package stepgraph

import (
	"context"
	"log/slog"
)

// Audit step ids injected by NewAudited.
const (
	AuditBeforeStepID = "audit.before"
	AuditAfterStepID  = "audit.after"
)

// Build creates a builder, lets compose declare the graph and commits it.
// Every factory below goes through Build, so every graph it produces carries
// the memory load and save steps.
func Build(name string, compose func(b *Builder), opts ...Option) (*Workflow, error) {
	b := New(name, opts...)
	if compose != nil {
		compose(b)
	}
	return b.Commit()
}

// NewSimple builds a single-step workflow.
func NewSimple(name string, step Step, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		b.Step(step)
	}, opts...)
}

// NewChained builds a workflow that runs first and then second.
func NewChained(name string, first, second Step, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		b.Step(first).Then(second)
	}, opts...)
}

// NewParallelMerge builds a workflow that runs branches concurrently and
// then merge, which can read every branch result.
func NewParallelMerge(name string, branches []Step, merge Step, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		b.Parallel(branches...).Then(merge)
	}, opts...)
}

// NewBranching builds a workflow that runs thenStep when pred holds and
// elseStep otherwise.
func NewBranching(name string, pred Predicate, thenStep, elseStep Step, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		b.If(pred).Step(thenStep).Else().Step(elseStep).EndIf()
	}, opts...)
}

// NewRetry builds a workflow that re-runs step until the predicate holds.
func NewRetry(name string, step Step, until Predicate, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		b.Until(until, step)
	}, opts...)
}

// NewLoop builds a workflow that runs step while the predicate holds.
func NewLoop(name string, step Step, while Predicate, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		b.While(while, step)
	}, opts...)
}

// NewNested builds a workflow whose single step runs inner and outputs the
// output of innerStepID unchanged.
func NewNested(name, id string, inner *Workflow, innerStepID string, opts ...Option) (*Workflow, error) {
	return NewSimple(name, NestedStep(id, inner, innerStepID), opts...)
}

// NewSafe is NewNested with a caught failure: when the inner run fails the
// step outputs fallback instead.
func NewSafe(name, id string, inner *Workflow, innerStepID string, fallback any, opts ...Option) (*Workflow, error) {
	return NewSimple(name, NestedStep(id, inner, innerStepID, WithFallback(fallback)), opts...)
}

// NewWrapped is NewNested with the output rendered as "Nested: " + X.
func NewWrapped(name, id string, inner *Workflow, innerStepID string, opts ...Option) (*Workflow, error) {
	return NewSimple(name, NestedStep(id, inner, innerStepID, WithFold(NestedPrefix("Nested: "))), opts...)
}

// NewWithPlugins builds a workflow from compose and then applies plugins in
// order before committing.
func NewWithPlugins(name string, compose func(b *Builder), plugins []Plugin, opts ...Option) (*Workflow, error) {
	return Build(name, func(b *Builder) {
		if compose != nil {
			compose(b)
		}
		b.Apply(plugins...)
	}, opts...)
}

// NewAudited surrounds step with logging steps. A nil logger uses
// slog.Default().
func NewAudited(name string, step Step, logger *slog.Logger, opts ...Option) (*Workflow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return Build(name, func(b *Builder) {
		b.Step(auditStep(AuditBeforeStepID, step.ID, logger)).
			Then(step).
			Then(auditStep(AuditAfterStepID, step.ID, logger))
	}, opts...)
}

func auditStep(id, target string, logger *slog.Logger) Step {
	return NewStep(id, func(ctx context.Context, sc *StepContext) (any, error) {
		attrs := []slog.Attr{
			slog.String("workflow", sc.WorkflowName()),
			slog.String("run_id", sc.RunID()),
			slog.String("step", target),
		}
		if id == AuditAfterStepID {
			res, ok := sc.Result(target)
			if ok {
				attrs = append(attrs,
					slog.String("status", string(res.Status)),
					slog.Duration("duration", res.Duration))
			}
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "audit_"+auditPhase(id), attrs...)
		return map[string]any{"step": target, "phase": auditPhase(id)}, nil
	}, WithDescription("audit log around "+target))
}

func auditPhase(id string) string {
	if id == AuditBeforeStepID {
		return "before"
	}
	return "after"
}

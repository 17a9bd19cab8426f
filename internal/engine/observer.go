package engine

import (
	"context"
	"time"

	"github.com/petrijr/stepgraph/pkg/api"
)

// safeObserver shields the run from observers that panic.
type safeObserver struct {
	next api.Observer
}

func (o safeObserver) OnRunStart(ctx context.Context, run api.RunInfo) {
	defer func() { _ = recover() }()
	o.next.OnRunStart(ctx, run)
}

func (o safeObserver) OnRunCompleted(ctx context.Context, run api.RunInfo, rc *api.RunContext) {
	defer func() { _ = recover() }()
	o.next.OnRunCompleted(ctx, run, rc)
}

func (o safeObserver) OnRunFailed(ctx context.Context, run api.RunInfo, rc *api.RunContext, err error) {
	defer func() { _ = recover() }()
	o.next.OnRunFailed(ctx, run, rc, err)
}

func (o safeObserver) OnStepStart(ctx context.Context, run api.RunInfo, stepID string, attempt int) {
	defer func() { _ = recover() }()
	o.next.OnStepStart(ctx, run, stepID, attempt)
}

func (o safeObserver) OnStepCompleted(ctx context.Context, run api.RunInfo, stepID string, attempt int, err error, d time.Duration) {
	defer func() { _ = recover() }()
	o.next.OnStepCompleted(ctx, run, stepID, attempt, err, d)
}

package stepgraph

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/petrijr/stepgraph/pkg/api"
)

// Run is a single execution of a committed Workflow. A Run can be started
// exactly once.
type Run struct {
	wf      *Workflow
	id      string
	started atomic.Bool
}

// RunOption customizes a Run.
type RunOption func(*Run)

// WithRunID overrides the generated run id.
func WithRunID(id string) RunOption {
	return func(r *Run) {
		if id != "" {
			r.id = id
		}
	}
}

// RunResult is the terminal outcome of a Run. On failure Context holds the
// partial results recorded before the error.
type RunResult struct {
	RunID    string
	Workflow string
	Status   Status
	Context  *RunContext
	Err      error
}

// CreateRun prepares a new run of the workflow.
func (w *Workflow) CreateRun(opts ...RunOption) *Run {
	r := &Run{wf: w, id: uuid.NewString()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.id
}

// Start executes the run with the given trigger data and waits for it to
// finish. The returned RunResult is non-nil for every run that started,
// including failed ones; err equals RunResult.Err.
func (r *Run) Start(ctx context.Context, trigger any) (*RunResult, error) {
	if !r.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", api.ErrRunAlreadyStarted, r.id)
	}

	info := api.RunInfo{ID: r.id, Workflow: r.wf.Name(), Trigger: trigger}
	rc := api.NewRunContext(r.id, r.wf.Name(), trigger)

	res := &RunResult{
		RunID:    r.id,
		Workflow: r.wf.Name(),
		Status:   api.StatusCompleted,
		Context:  rc,
	}
	if err := r.wf.executor.Execute(ctx, info, r.wf.def, rc); err != nil {
		res.Status = api.StatusFailed
		res.Err = err
		return res, err
	}
	return res, nil
}

// Execute creates a run and starts it.
func (w *Workflow) Execute(ctx context.Context, trigger any) (*RunResult, error) {
	return w.CreateRun().Start(ctx, trigger)
}

// Succeeded reports whether the run completed.
func (r *RunResult) Succeeded() bool {
	return r.Status == api.StatusCompleted
}

// Results returns the recorded step results keyed by step id.
func (r *RunResult) Results() map[string]StepResult {
	out := make(map[string]StepResult, r.Context.Len())
	for _, res := range r.Context.Results() {
		out[res.StepID] = res
	}
	return out
}

// Output returns the output of a step of the run.
func (r *RunResult) Output(stepID string) (any, error) {
	return r.Context.Output(stepID)
}

package api

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// StepStatus is the outcome recorded for a step.
type StepStatus string

const (
	StepSucceeded StepStatus = "success"
	StepErrored   StepStatus = "error"
)

// StepResult is the outcome of one step in a run.
type StepResult struct {
	StepID string
	Status StepStatus
	Output any
	Err    error

	// Attempts counts every invocation of the step body in this run,
	// including loop iterations and retries.
	Attempts int

	StartedAt time.Time
	Duration  time.Duration
}

// RunContext is the per-run state: the immutable trigger payload and the
// insertion-ordered results of every step executed so far.
//
// Results are write-once per step id. The only exception is a step wrapped
// in an until or while node, whose entry is replaced on every iteration
// while keeping its original position.
//
// A RunContext is safe for concurrent use by the bodies of a parallel group.
type RunContext struct {
	runID    string
	workflow string
	trigger  any

	mu       sync.RWMutex
	threadID string
	memory   map[string]any
	order    []string
	results  map[string]StepResult
}

// NewRunContext creates an empty context for a run.
func NewRunContext(runID, workflow string, trigger any) *RunContext {
	return &RunContext{
		runID:    runID,
		workflow: workflow,
		trigger:  trigger,
		results:  make(map[string]StepResult),
	}
}

func (c *RunContext) RunID() string        { return c.runID }
func (c *RunContext) WorkflowName() string { return c.workflow }

// TriggerData returns the payload the run was started with.
func (c *RunContext) TriggerData() any { return c.trigger }

// ThreadID returns the memory thread bound by the memory-load step.
func (c *RunContext) ThreadID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threadID
}

// Memory returns a copy of the values loaded for the run's thread.
func (c *RunContext) Memory() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.memory)
}

// MemoryValue returns a single value loaded for the run's thread.
func (c *RunContext) MemoryValue(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.memory[key]
	return v, ok
}

// BindThread attaches the thread id and the values loaded for it. It is
// called by the memory-load step at the start of every run.
func (c *RunContext) BindThread(threadID string, values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadID = threadID
	c.memory = maps.Clone(values)
}

// Record stores the result of a step that has not been recorded before.
func (c *RunContext) Record(res StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[res.StepID]; exists {
		return fmt.Errorf("%w: %q", ErrResultAlreadyRecorded, res.StepID)
	}
	c.order = append(c.order, res.StepID)
	c.results[res.StepID] = res
	return nil
}

// Replace stores the result of a re-executed step, keeping the position of
// its first entry. It is used by until and while nodes.
func (c *RunContext) Replace(res StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[res.StepID]; !exists {
		c.order = append(c.order, res.StepID)
	}
	c.results[res.StepID] = res
}

// Result returns the recorded result for a step and whether it ran.
func (c *RunContext) Result(stepID string) (StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.results[stepID]
	return res, ok
}

// Output returns the output of a successful step.
// It returns ErrStepNotExecuted if the step has not run, and a *StepError
// (or the recorded contract error) if it failed.
func (c *RunContext) Output(stepID string) (any, error) {
	res, ok := c.Result(stepID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStepNotExecuted, stepID)
	}
	if res.Status == StepErrored {
		var se *StepError
		var ce *ContractError
		if errors.As(res.Err, &se) || errors.As(res.Err, &ce) {
			return nil, res.Err
		}
		return nil, &StepError{StepID: stepID, Err: res.Err}
	}
	return res.Output, nil
}

// Succeeded reports whether the step ran and succeeded.
func (c *RunContext) Succeeded(stepID string) bool {
	res, ok := c.Result(stepID)
	return ok && res.Status == StepSucceeded
}

// StepIDs returns the ids of recorded steps in insertion order.
func (c *RunContext) StepIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Results returns every recorded result in insertion order.
func (c *RunContext) Results() []StepResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]StepResult, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.results[id])
	}
	return out
}

// Len returns the number of recorded steps.
func (c *RunContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// OutputAs returns the output of a step converted to T.
func OutputAs[T any](rc *RunContext, stepID string) (T, error) {
	var zero T
	out, err := rc.Output(stepID)
	if err != nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("step %q output has type %T, want %T", stepID, out, zero)
	}
	return v, nil
}

// TriggerAs returns the trigger data converted to T.
func TriggerAs[T any](rc *RunContext) (T, error) {
	var zero T
	v, ok := rc.TriggerData().(T)
	if !ok {
		return zero, fmt.Errorf("trigger data has type %T, want %T", rc.TriggerData(), zero)
	}
	return v, nil
}

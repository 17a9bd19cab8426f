package api

import (
	"context"
	"encoding/gob"
	"time"
)

func init() {
	gob.Register(SuspendMarker{})
	gob.Register(MemorySnapshot{})
}

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// RunInfo identifies a run to observers.
type RunInfo struct {
	ID       string
	Workflow string
	Trigger  any
}

// StepFunc is the execution body of a step. It receives the per-step view
// of the run context and returns the step output.
type StepFunc func(ctx context.Context, sc *StepContext) (any, error)

// StepContext is what a step body sees: the shared RunContext of the run plus
// the data specific to this invocation.
type StepContext struct {
	*RunContext

	// StepID is the id of the executing step.
	StepID string

	// Input is the step input after contract validation: the trigger data,
	// or the output of the step named by StepDefinition.InputFrom.
	Input any

	// Attempt is the 1-based number of times this step body has been invoked
	// in the current run, counting loop iterations and retries.
	Attempt int
}

// StepDefinition describes a step. Steps are immutable once the graph that
// declares them is committed.
type StepDefinition struct {
	ID          string
	Description string

	// Input and Output are optional contracts enforced at the step boundary.
	Input  *Schema
	Output *Schema

	// InputFrom names an earlier step whose output becomes this step's Input.
	// Empty means the trigger data.
	InputFrom string

	Fn StepFunc

	// Retry, when set, re-invokes Fn after an error. It is declared
	// structure: the engine never retries a step without one.
	Retry *RetryPolicy
}

// Clone returns a copy of d that shares nothing mutable with it.
func (d StepDefinition) Clone() StepDefinition {
	d.Input = d.Input.Clone()
	d.Output = d.Output.Clone()
	if d.Retry != nil {
		r := *d.Retry
		d.Retry = &r
	}
	return d
}

// RetryPolicy controls how a step is retried when it returns an error.
// MaxAttempts includes the first attempt. For example:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// InitialBackoff is the delay before the first retry. Each later delay is
// multiplied by BackoffMultiplier (default 2.0) and capped by MaxBackoff
// when MaxBackoff > 0. A zero InitialBackoff retries immediately.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// Predicate decides control flow for conditional, until and while nodes.
// It is evaluated against the run context as it exists when the node is
// reached. A returned error is fatal for the run.
type Predicate func(rc *RunContext) (bool, error)

// When adapts an infallible condition into a Predicate.
func When(cond func(rc *RunContext) bool) Predicate {
	if cond == nil {
		return nil
	}
	return func(rc *RunContext) (bool, error) {
		return cond(rc), nil
	}
}

// SuspendMarker is the output of a suspend placeholder step. Suspension is
// logical only: the run continues with the next node.
type SuspendMarker struct {
	StepID    string
	Suspended bool
}

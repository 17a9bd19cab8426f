package stepgraph

import (
	"context"

	"github.com/petrijr/stepgraph/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Step                 = api.StepDefinition
	StepFunc             = api.StepFunc
	StepContext          = api.StepContext
	StepResult           = api.StepResult
	StepStatus           = api.StepStatus
	RunContext           = api.RunContext
	RunInfo              = api.RunInfo
	Status               = api.Status
	Schema               = api.Schema
	Predicate            = api.Predicate
	RetryPolicy          = api.RetryPolicy
	ParallelPolicy       = api.ParallelPolicy
	Memory               = api.Memory
	ThreadState          = api.ThreadState
	MemorySnapshot       = api.MemorySnapshot
	SuspendMarker        = api.SuspendMarker
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
	EventRecorder        = api.EventRecorder
	TracingObserver      = api.TracingObserver
	ContractError        = api.ContractError
	StepError            = api.StepError
	PredicateError       = api.PredicateError
	IterationLimitError  = api.IterationLimitError
	NestedRunError       = api.NestedRunError
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	NewEventRecorder     = api.NewEventRecorder
	NewTracingObserver   = api.NewTracingObserver
	When                 = api.When
)

// Re-export errors.

var (
	ErrContractViolation     = api.ErrContractViolation
	ErrStepNotExecuted       = api.ErrStepNotExecuted
	ErrStepFailed            = api.ErrStepFailed
	ErrPredicateFailed       = api.ErrPredicateFailed
	ErrIterationLimit        = api.ErrIterationLimit
	ErrNestedRunFailed       = api.ErrNestedRunFailed
	ErrGraphCommitted        = api.ErrGraphCommitted
	ErrDuplicateStep         = api.ErrDuplicateStep
	ErrInvalidGraph          = api.ErrInvalidGraph
	ErrRunAlreadyStarted     = api.ErrRunAlreadyStarted
	ErrResultAlreadyRecorded = api.ErrResultAlreadyRecorded
)

// Re-export status values for convenience.

const (
	StatusPending   = api.StatusPending
	StatusRunning   = api.StatusRunning
	StatusFailed    = api.StatusFailed
	StatusCompleted = api.StatusCompleted

	StepSucceeded = api.StepSucceeded
	StepErrored   = api.StepErrored

	FailFast = api.FailFast
	AwaitAll = api.AwaitAll

	Unbounded = api.Unbounded

	MemoryLoadStepID = api.MemoryLoadStepID
	MemorySaveStepID = api.MemorySaveStepID
)

// Execute starts a fresh run of wf with the given trigger data and waits for
// it to finish.
func Execute(ctx context.Context, wf *Workflow, trigger any) (*RunResult, error) {
	return wf.Execute(ctx, trigger)
}

// OutputAs returns the output of stepID converted to T.
func OutputAs[T any](rc *RunContext, stepID string) (T, error) {
	return api.OutputAs[T](rc, stepID)
}

// TriggerAs returns the trigger data of the run converted to T.
func TriggerAs[T any](rc *RunContext) (T, error) {
	return api.TriggerAs[T](rc)
}

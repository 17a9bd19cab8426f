package api

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation matches every *ContractError.
	ErrContractViolation = errors.New("contract violation")

	// ErrStepNotExecuted is returned when reading the result of a step that
	// has not run (yet) in the current run.
	ErrStepNotExecuted = errors.New("step not executed")

	// ErrStepFailed matches every *StepError.
	ErrStepFailed = errors.New("step failed")

	// ErrPredicateFailed matches every *PredicateError.
	ErrPredicateFailed = errors.New("predicate failed")

	// ErrIterationLimit matches every *IterationLimitError.
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrNestedRunFailed matches every *NestedRunError.
	ErrNestedRunFailed = errors.New("nested run failed")

	ErrGraphCommitted        = errors.New("graph already committed")
	ErrDuplicateStep         = errors.New("duplicate step id")
	ErrInvalidGraph          = errors.New("invalid graph")
	ErrRunAlreadyStarted     = errors.New("run already started")
	ErrResultAlreadyRecorded = errors.New("result already recorded")
)

// Direction says which side of a step boundary a contract guards.
type Direction string

const (
	DirectionTrigger Direction = "trigger"
	DirectionInput   Direction = "input"
	DirectionOutput  Direction = "output"
)

// ContractError reports a value that does not satisfy its declared Schema.
type ContractError struct {
	StepID    string
	Direction Direction
	Path      string
	Reason    string
}

func (e *ContractError) Error() string {
	switch {
	case e.Direction == DirectionTrigger:
		return fmt.Sprintf("trigger contract violated at %s: %s", e.Path, e.Reason)
	case e.StepID != "":
		return fmt.Sprintf("%s contract of step %q violated at %s: %s", e.Direction, e.StepID, e.Path, e.Reason)
	}
	return fmt.Sprintf("contract violated at %s: %s", e.Path, e.Reason)
}

func (e *ContractError) Is(target error) bool { return target == ErrContractViolation }

// StepError wraps a failure returned (or panicked) by a step body.
type StepError struct {
	StepID string
	Err    error
	Panic  bool
}

func (e *StepError) Error() string {
	if e.Panic {
		return fmt.Sprintf("step %q panicked: %v", e.StepID, e.Err)
	}
	return fmt.Sprintf("step %q failed: %v", e.StepID, e.Err)
}

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }
func (e *StepError) Unwrap() error        { return e.Err }

// PredicateError reports a conditional, until or while predicate that
// returned an error or panicked. It is fatal for the run.
type PredicateError struct {
	Node   NodeKind
	StepID string
	Err    error
	Panic  bool
}

func (e *PredicateError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s predicate for step %q failed: %v", e.Node, e.StepID, e.Err)
	}
	return fmt.Sprintf("%s predicate failed: %v", e.Node, e.Err)
}

func (e *PredicateError) Is(target error) bool { return target == ErrPredicateFailed }
func (e *PredicateError) Unwrap() error        { return e.Err }

// IterationLimitError is returned when a loop node executes its step Limit
// times without its predicate releasing it.
type IterationLimitError struct {
	StepID string
	Mode   LoopMode
	Limit  int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("%s loop on step %q exceeded %d iterations", e.Mode, e.StepID, e.Limit)
}

func (e *IterationLimitError) Is(target error) bool { return target == ErrIterationLimit }

// NestedRunError is returned by a nested-invocation step when the inner run
// fails. Context holds the inner run's partial results.
type NestedRunError struct {
	StepID   string
	Workflow string
	Err      error
	Context  *RunContext
}

func (e *NestedRunError) Error() string {
	return fmt.Sprintf("nested workflow %q in step %q failed: %v", e.Workflow, e.StepID, e.Err)
}

func (e *NestedRunError) Is(target error) bool { return target == ErrNestedRunFailed }
func (e *NestedRunError) Unwrap() error        { return e.Err }

package api

import (
	"context"
	"sync"
	"time"
)

// EventType identifies a run history event.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"

	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"
	EventStepFailed    EventType = "step.failed"
)

// RunEvent is a minimal in-memory history record for audit/debugging.
type RunEvent struct {
	RunID    string
	Workflow string
	At       time.Time
	Type     EventType

	StepID  string
	Attempt int

	// Small, human-oriented details (e.g. an error string).
	Detail string
}

// EventRecorder is an Observer that keeps the history of every run it sees
// in memory. It is meant for tests and debugging, not for long-lived
// processes.
type EventRecorder struct {
	mu     sync.Mutex
	events []RunEvent
	now    func() time.Time
}

// NewEventRecorder returns an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{now: time.Now}
}

// Events returns a copy of the recorded history in arrival order.
func (r *EventRecorder) Events() []RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunEvent(nil), r.events...)
}

// ForRun returns the events of one run.
func (r *EventRecorder) ForRun(runID string) []RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []RunEvent
	for _, ev := range r.events {
		if ev.RunID == runID {
			out = append(out, ev)
		}
	}
	return out
}

// StepOrder returns the ids of started steps in the order they started.
func (r *EventRecorder) StepOrder(runID string) []string {
	var ids []string
	for _, ev := range r.ForRun(runID) {
		if ev.Type == EventStepStarted {
			ids = append(ids, ev.StepID)
		}
	}
	return ids
}

func (r *EventRecorder) append(ev RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.At = r.now()
	r.events = append(r.events, ev)
}

func (r *EventRecorder) OnRunStart(ctx context.Context, run RunInfo) {
	r.append(RunEvent{RunID: run.ID, Workflow: run.Workflow, Type: EventRunStarted})
}

func (r *EventRecorder) OnRunCompleted(ctx context.Context, run RunInfo, rc *RunContext) {
	r.append(RunEvent{RunID: run.ID, Workflow: run.Workflow, Type: EventRunCompleted})
}

func (r *EventRecorder) OnRunFailed(ctx context.Context, run RunInfo, rc *RunContext, err error) {
	r.append(RunEvent{RunID: run.ID, Workflow: run.Workflow, Type: EventRunFailed, Detail: errString(err)})
}

func (r *EventRecorder) OnStepStart(ctx context.Context, run RunInfo, stepID string, attempt int) {
	r.append(RunEvent{RunID: run.ID, Workflow: run.Workflow, Type: EventStepStarted, StepID: stepID, Attempt: attempt})
}

func (r *EventRecorder) OnStepCompleted(ctx context.Context, run RunInfo, stepID string, attempt int, err error, d time.Duration) {
	ev := RunEvent{RunID: run.ID, Workflow: run.Workflow, Type: EventStepCompleted, StepID: stepID, Attempt: attempt}
	if err != nil {
		ev.Type = EventStepFailed
		ev.Detail = err.Error()
	}
	r.append(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package api

import (
	"context"
	"maps"
	"time"
)

const (
	// MemoryLoadStepID is the id of the step every committed graph starts with.
	MemoryLoadStepID = "memory.load"

	// MemorySaveStepID is the id of the step every committed graph ends with.
	MemorySaveStepID = "memory.save"

	// DefaultThreadKey is the trigger field the thread id is read from.
	DefaultThreadKey = "threadId"
)

// ThreadState is the persisted memory of one conversation thread.
type ThreadState struct {
	ThreadID  string
	Values    map[string]any
	UpdatedAt time.Time
}

// Clone returns a copy of s with its own Values map.
func (s *ThreadState) Clone() *ThreadState {
	if s == nil {
		return nil
	}
	c := *s
	c.Values = maps.Clone(s.Values)
	return &c
}

// Memory loads and saves thread state. Implementations must be safe for
// concurrent use; concurrent runs on the same thread are not serialized.
type Memory interface {
	// Load returns the state of a thread, or nil and no error when the thread
	// has never been saved.
	Load(ctx context.Context, threadID string) (*ThreadState, error)

	// Save stores the state of a thread, replacing whatever was there.
	Save(ctx context.Context, state *ThreadState) error
}

// MemorySnapshot is the output recorded by the memory load and save steps.
type MemorySnapshot struct {
	ThreadID string
	Values   map[string]any

	// Found reports, for the load step, whether the thread existed.
	Found bool
}

// ThreadIdentifier can be implemented by trigger payloads that carry their
// thread id themselves.
type ThreadIdentifier interface {
	ThreadID() string
}

package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/stepgraph/pkg/api"
)

var (
	// ErrInvalidState is returned when saving a nil state or one without a
	// thread id.
	ErrInvalidState = errors.New("invalid thread state")
)

// ThreadStore is an api.Memory that can also forget threads.
type ThreadStore interface {
	api.Memory

	// Delete removes a thread. Deleting an unknown thread is not an error.
	Delete(ctx context.Context, threadID string) error
}

func checkState(state *api.ThreadState) error {
	if state == nil {
		return ErrInvalidState
	}
	if state.ThreadID == "" {
		return errors.Join(ErrInvalidState, errors.New("empty thread id"))
	}
	return nil
}

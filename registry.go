package stepgraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrWorkflowNotFound is returned by Registry.Get for unknown names.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrDuplicateWorkflow is returned by Registry.Register when the name is
	// already taken.
	ErrDuplicateWorkflow = errors.New("workflow already registered")
)

// Registry maps names to committed workflows. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Workflow
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Workflow),
	}
}

// Register adds wf under its name.
func (r *Registry) Register(wf *Workflow) error {
	if wf == nil {
		return fmt.Errorf("register nil workflow: %w", ErrInvalidGraph)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[wf.Name()]; exists {
		return fmt.Errorf("workflow %q: %w", wf.Name(), ErrDuplicateWorkflow)
	}
	r.byName[wf.Name()] = wf
	return nil
}

// Get returns the workflow registered under name.
func (r *Registry) Get(name string) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", name, ErrWorkflowNotFound)
	}
	return wf, nil
}

// Names returns the registered names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

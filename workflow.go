package stepgraph

import (
	"fmt"

	"github.com/petrijr/stepgraph/internal/engine"
	"github.com/petrijr/stepgraph/pkg/api"
)

// Workflow is a committed, immutable workflow graph. It is safe to create
// and start any number of concurrent runs from the same Workflow.
type Workflow struct {
	def      api.GraphDefinition
	memory   api.Memory
	executor *engine.Executor
}

// Commit validates the graph, wraps it with the memory load and save steps
// and freezes it. Any composition call made afterwards is rejected and does
// not affect the returned Workflow.
func (b *Builder) Commit() (*Workflow, error) {
	if b.committed {
		return nil, b.fail(fmt.Errorf("%w: Commit on workflow %q", api.ErrGraphCommitted, b.name)).err
	}
	b.committed = true
	b.branches = nil

	if b.err != nil {
		return nil, b.err
	}
	if err := validate(b.name, b.nodes); err != nil {
		b.err = err
		return nil, err
	}
	if n := b.settings.maxIterations; n < api.Unbounded {
		b.err = fmt.Errorf("%w: workflow %q with iteration limit %d", api.ErrInvalidGraph, b.name, n)
		return nil, b.err
	}

	mem := b.settings.memory
	if mem == nil {
		mem = NewInMemoryMemory()
	}

	def := api.GraphDefinition{
		Name:    b.name,
		Trigger: b.settings.trigger.Clone(),
		Nodes:   withMemoryBookends(api.CloneNodes(b.nodes), mem, b.settings.threadKey, b.settings.logger),
	}

	return &Workflow{
		def:    def,
		memory: mem,
		executor: engine.New(engine.Config{
			Observer:       api.NewCompositeObserver(b.settings.observers...),
			MaxIterations:  b.settings.maxIterations,
			ParallelPolicy: b.settings.policy,
		}),
	}, nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.def.Name
}

// Definition returns a copy of the committed graph, bookends included.
func (w *Workflow) Definition() api.GraphDefinition {
	return w.def.Clone()
}

// StepIDs returns every step id of the committed graph in declaration order.
func (w *Workflow) StepIDs() []string {
	return w.def.StepIDs()
}

// Memory returns the store used by the workflow's memory steps.
func (w *Workflow) Memory() Memory {
	return w.memory
}

// validate checks the user-declared nodes of a graph before commit.
func validate(name string, nodes []api.Node) error {
	if name == "" {
		return fmt.Errorf("%w: workflow name is required", api.ErrInvalidGraph)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: workflow %q must have at least one step", api.ErrInvalidGraph, name)
	}
	v := &validator{seen: map[string]bool{
		api.MemoryLoadStepID: true,
		api.MemorySaveStepID: true,
	}}
	return v.nodes(nodes)
}

type validator struct {
	seen map[string]bool
}

func (v *validator) nodes(nodes []api.Node) error {
	for _, n := range nodes {
		if err := v.node(n); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) node(n api.Node) error {
	switch n := n.(type) {
	case *api.StepNode:
		return v.steps(n.Step)
	case *api.ParallelNode:
		if len(n.Steps) < 2 {
			return fmt.Errorf("%w: parallel group needs at least 2 steps", api.ErrInvalidGraph)
		}
		return v.steps(n.Steps...)
	case *api.BranchNode:
		if n.Predicate == nil {
			return fmt.Errorf("%w: conditional with nil predicate", api.ErrInvalidGraph)
		}
		if len(n.Then) == 0 && len(n.Else) == 0 {
			return fmt.Errorf("%w: conditional without steps", api.ErrInvalidGraph)
		}
		if err := v.nodes(n.Then); err != nil {
			return err
		}
		return v.nodes(n.Else)
	case *api.LoopNode:
		if n.Predicate == nil {
			return fmt.Errorf("%w: %s on step %q with nil predicate", api.ErrInvalidGraph, n.Mode, n.Step.ID)
		}
		return v.steps(n.Step)
	default:
		return fmt.Errorf("%w: unknown node type %T", api.ErrInvalidGraph, n)
	}
}

// steps checks a set of steps that become visible at the same time: an
// InputFrom reference must name a step declared before the whole set.
func (v *validator) steps(steps ...api.StepDefinition) error {
	for _, s := range steps {
		if s.ID == "" {
			return fmt.Errorf("%w: step id must not be empty", api.ErrInvalidGraph)
		}
		if s.Fn == nil {
			return fmt.Errorf("%w: step %q has nil function", api.ErrInvalidGraph, s.ID)
		}
		if s.InputFrom != "" && (s.InputFrom == api.MemorySaveStepID || !v.seen[s.InputFrom]) {
			return fmt.Errorf("%w: step %q reads input from %q which is not declared before it", api.ErrInvalidGraph, s.ID, s.InputFrom)
		}
		if s.Retry != nil && s.Retry.MaxAttempts < 0 {
			return fmt.Errorf("%w: step %q has negative retry attempts", api.ErrInvalidGraph, s.ID)
		}
	}
	for _, s := range steps {
		if v.seen[s.ID] {
			if isBookend(s.ID) {
				return fmt.Errorf("%w: %q is reserved", api.ErrDuplicateStep, s.ID)
			}
			return fmt.Errorf("%w: %q", api.ErrDuplicateStep, s.ID)
		}
		v.seen[s.ID] = true
	}
	return nil
}

func isBookend(id string) bool {
	return id == api.MemoryLoadStepID || id == api.MemorySaveStepID
}

package stepgraph

import (
	"fmt"

	"github.com/petrijr/stepgraph/pkg/api"
)

// Builder provides a fluent API for composing workflow graphs:
//
//	wf, err := stepgraph.New("onboard-user").
//	    Step(createAccount).
//	    Parallel(sendWelcomeEmail, provisionWorkspace).
//	    If(isEnterprise).
//	        Step(assignAccountManager).
//	    Else().
//	        Step(sendSelfServeGuide).
//	    EndIf().
//	    Then(notifySales).
//	    Commit()
//
// Misuse (an empty id, Else without If, composing after Commit, ...) does
// not panic: the first error is kept and returned by Commit.
type Builder struct {
	name     string
	settings settings

	nodes    []api.Node
	branches []*openBranch

	err       error
	committed bool
}

type openBranch struct {
	node   *api.BranchNode
	inElse bool
}

// Plugin mutates a builder before it is committed.
type Plugin func(b *Builder)

// LoopOption customizes an Until or While node.
type LoopOption func(n *api.LoopNode)

// WithLoopLimit overrides the iteration cap of one loop node.
// Pass Unbounded to let the loop run until its predicate releases it.
func WithLoopLimit(n int) LoopOption {
	return func(node *api.LoopNode) {
		node.MaxIterations = n
	}
}

// New creates a new workflow builder with the given name.
func New(name string, opts ...Option) *Builder {
	b := &Builder{name: name, settings: defaultSettings()}
	for _, opt := range opts {
		if opt != nil {
			opt(&b.settings)
		}
	}
	return b
}

// Name returns the workflow name.
func (b *Builder) Name() string {
	return b.name
}

// Err returns the first composition error recorded so far.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// usable reports whether composition calls may still change the graph.
func (b *Builder) usable(op string) bool {
	if b.committed {
		b.fail(fmt.Errorf("%w: %s on workflow %q", api.ErrGraphCommitted, op, b.name))
		return false
	}
	return true
}

func (b *Builder) add(n api.Node) {
	if len(b.branches) == 0 {
		b.nodes = append(b.nodes, n)
		return
	}
	top := b.branches[len(b.branches)-1]
	if top.inElse {
		top.node.Else = append(top.node.Else, n)
	} else {
		top.node.Then = append(top.node.Then, n)
	}
}

// Step appends a step in sequential order. Inside an open If/Else it is
// appended to the current branch.
func (b *Builder) Step(s Step) *Builder {
	if !b.usable("Step") {
		return b
	}
	b.add(&api.StepNode{Step: s})
	return b
}

// Then closes every open branch and appends s after all prior nodes.
func (b *Builder) Then(s Step) *Builder {
	if !b.usable("Then") {
		return b
	}
	b.branches = nil
	b.nodes = append(b.nodes, &api.StepNode{Step: s})
	return b
}

// Parallel appends a group of at least two steps that run concurrently. The
// group fails according to the workflow's parallel policy.
func (b *Builder) Parallel(steps ...Step) *Builder {
	return b.ParallelWith("", steps...)
}

// ParallelWith is like Parallel with an explicit failure policy for this
// group. An empty policy uses the workflow default.
func (b *Builder) ParallelWith(policy ParallelPolicy, steps ...Step) *Builder {
	if !b.usable("Parallel") {
		return b
	}
	if len(steps) < 2 {
		return b.fail(fmt.Errorf("%w: parallel group needs at least 2 steps, got %d", api.ErrInvalidGraph, len(steps)))
	}
	switch policy {
	case "", api.FailFast, api.AwaitAll:
	default:
		return b.fail(fmt.Errorf("%w: unknown parallel policy %q", api.ErrInvalidGraph, policy))
	}
	b.add(&api.ParallelNode{
		Steps:  append([]api.StepDefinition(nil), steps...),
		Policy: policy,
	})
	return b
}

// If opens a conditional node. Subsequent Step calls go to the then-branch
// until Else, EndIf, Then or Commit. Conditionals may be nested.
func (b *Builder) If(pred Predicate) *Builder {
	if !b.usable("If") {
		return b
	}
	if pred == nil {
		return b.fail(fmt.Errorf("%w: If with nil predicate", api.ErrInvalidGraph))
	}
	node := &api.BranchNode{Predicate: pred}
	b.add(node)
	b.branches = append(b.branches, &openBranch{node: node})
	return b
}

// Else switches the innermost open conditional to its else-branch.
func (b *Builder) Else() *Builder {
	if !b.usable("Else") {
		return b
	}
	if len(b.branches) == 0 {
		return b.fail(fmt.Errorf("%w: Else without If", api.ErrInvalidGraph))
	}
	top := b.branches[len(b.branches)-1]
	if top.inElse {
		return b.fail(fmt.Errorf("%w: Else called twice for the same If", api.ErrInvalidGraph))
	}
	top.inElse = true
	return b
}

// EndIf closes the innermost open conditional.
func (b *Builder) EndIf() *Builder {
	if !b.usable("EndIf") {
		return b
	}
	if len(b.branches) == 0 {
		return b.fail(fmt.Errorf("%w: EndIf without If", api.ErrInvalidGraph))
	}
	b.branches = b.branches[:len(b.branches)-1]
	return b
}

// Until appends a node that runs s, then evaluates pred against the latest
// run context, and repeats while pred is false. Each execution overwrites
// the previous result of s.
func (b *Builder) Until(pred Predicate, s Step, opts ...LoopOption) *Builder {
	return b.loop("Until", api.LoopUntil, pred, s, opts)
}

// While appends a node that evaluates pred and runs s for as long as it
// holds. s may run zero times.
func (b *Builder) While(pred Predicate, s Step, opts ...LoopOption) *Builder {
	return b.loop("While", api.LoopWhile, pred, s, opts)
}

func (b *Builder) loop(op string, mode api.LoopMode, pred Predicate, s Step, opts []LoopOption) *Builder {
	if !b.usable(op) {
		return b
	}
	if pred == nil {
		return b.fail(fmt.Errorf("%w: %s on step %q with nil predicate", api.ErrInvalidGraph, op, s.ID))
	}
	node := &api.LoopNode{Mode: mode, Predicate: pred, Step: s}
	for _, opt := range opts {
		if opt != nil {
			opt(node)
		}
	}
	if node.MaxIterations < api.Unbounded {
		return b.fail(fmt.Errorf("%w: %s on step %q with iteration limit %d", api.ErrInvalidGraph, op, s.ID, node.MaxIterations))
	}
	b.add(node)
	return b
}

// SuspendPoint appends a logical suspension marker. It records a
// SuspendMarker and lets the run continue; it is not a checkpoint.
func (b *Builder) SuspendPoint(id string) *Builder {
	return b.Step(SuspendStep(id))
}

// Apply runs plugins against the builder in order.
func (b *Builder) Apply(plugins ...Plugin) *Builder {
	if !b.usable("Apply") {
		return b
	}
	for _, p := range plugins {
		if p != nil {
			p(b)
		}
	}
	return b
}

// MustCommit is like Commit but panics on error.
// Useful for initialization in main().
func (b *Builder) MustCommit() *Workflow {
	wf, err := b.Commit()
	if err != nil {
		panic(err)
	}
	return wf
}

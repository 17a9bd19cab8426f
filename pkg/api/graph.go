package api

// NodeKind identifies a graph node type.
type NodeKind string

const (
	NodeStep     NodeKind = "step"
	NodeParallel NodeKind = "parallel"
	NodeBranch   NodeKind = "branch"
	NodeUntil    NodeKind = "until"
	NodeWhile    NodeKind = "while"
)

// ParallelPolicy decides what a parallel group does when a member fails.
type ParallelPolicy string

const (
	// FailFast cancels the context handed to the remaining members as soon as
	// one fails, waits for all of them to return, and fails with the first error.
	FailFast ParallelPolicy = "fail-fast"

	// AwaitAll lets every member finish and fails with all member errors joined
	// in declaration order.
	AwaitAll ParallelPolicy = "await-all"
)

// LoopMode distinguishes post-condition (until) from pre-condition (while) loops.
type LoopMode string

const (
	LoopUntil LoopMode = "until"
	LoopWhile LoopMode = "while"
)

const (
	// DefaultMaxIterations caps loop nodes that do not set MaxIterations.
	DefaultMaxIterations = 1000

	// Unbounded disables the iteration cap for a loop node.
	Unbounded = -1
)

// Node is an element of a workflow graph: a step or a control-flow node
// wrapping steps. The set of node types is closed.
type Node interface {
	Kind() NodeKind

	// StepIDs returns the ids of every step reachable inside the node,
	// in declaration order.
	StepIDs() []string

	clone() Node
}

// StepNode executes one step.
type StepNode struct {
	Step StepDefinition
}

// ParallelNode executes its steps concurrently and waits for all of them.
type ParallelNode struct {
	Steps  []StepDefinition
	Policy ParallelPolicy
}

// BranchNode evaluates Predicate once and executes exactly one of Then or Else.
type BranchNode struct {
	Predicate Predicate
	Then      []Node
	Else      []Node
}

// LoopNode re-executes Step. Until nodes run the step and then check the
// predicate, stopping once it is true. While nodes check the predicate first
// and run the step while it is true. MaxIterations of zero means
// DefaultMaxIterations; Unbounded disables the cap.
type LoopNode struct {
	Mode          LoopMode
	Predicate     Predicate
	Step          StepDefinition
	MaxIterations int
}

func (n *StepNode) Kind() NodeKind    { return NodeStep }
func (n *StepNode) StepIDs() []string { return []string{n.Step.ID} }
func (n *StepNode) clone() Node       { return &StepNode{Step: n.Step.Clone()} }

func (n *ParallelNode) Kind() NodeKind { return NodeParallel }

func (n *ParallelNode) StepIDs() []string {
	ids := make([]string, 0, len(n.Steps))
	for _, s := range n.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

func (n *ParallelNode) clone() Node {
	c := *n
	c.Steps = cloneSteps(n.Steps)
	return &c
}

func (n *BranchNode) Kind() NodeKind { return NodeBranch }

func (n *BranchNode) StepIDs() []string {
	return append(collectStepIDs(n.Then), collectStepIDs(n.Else)...)
}

func (n *BranchNode) clone() Node {
	return &BranchNode{
		Predicate: n.Predicate,
		Then:      CloneNodes(n.Then),
		Else:      CloneNodes(n.Else),
	}
}

func (n *LoopNode) Kind() NodeKind {
	if n.Mode == LoopWhile {
		return NodeWhile
	}
	return NodeUntil
}

func (n *LoopNode) StepIDs() []string { return []string{n.Step.ID} }
func (n *LoopNode) clone() Node {
	c := *n
	c.Step = n.Step.Clone()
	return &c
}

// GraphDefinition is the executable plan of a committed workflow.
type GraphDefinition struct {
	Name    string
	Trigger *Schema
	Nodes   []Node
}

// Clone returns a deep copy of g: node lists, step definitions, retry
// policies and schemas. Only functions (step bodies and predicates) are
// shared.
func (g GraphDefinition) Clone() GraphDefinition {
	g.Trigger = g.Trigger.Clone()
	g.Nodes = CloneNodes(g.Nodes)
	return g
}

// StepIDs returns every step id of the graph in declaration order.
func (g GraphDefinition) StepIDs() []string {
	return collectStepIDs(g.Nodes)
}

// CloneNodes deep-copies a node list.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

func cloneSteps(steps []StepDefinition) []StepDefinition {
	if steps == nil {
		return nil
	}
	out := make([]StepDefinition, len(steps))
	for i, s := range steps {
		out[i] = s.Clone()
	}
	return out
}

func collectStepIDs(nodes []Node) []string {
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.StepIDs()...)
	}
	return ids
}

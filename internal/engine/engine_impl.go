package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/stepgraph/pkg/api"
	"golang.org/x/sync/errgroup"
)

// Config describes how to construct an Executor.
type Config struct {
	Observer api.Observer

	// MaxIterations is the cap applied to loop nodes that do not set their
	// own. Zero means api.DefaultMaxIterations.
	MaxIterations int

	// ParallelPolicy is applied to parallel nodes that do not set their own.
	// Empty means api.FailFast.
	ParallelPolicy api.ParallelPolicy
}

// Executor walks a committed graph for one run at a time. It holds no
// per-run state and may be shared by concurrent runs.
type Executor struct {
	observer      api.Observer
	maxIterations int
	policy        api.ParallelPolicy
}

// New creates an Executor.
func New(cfg Config) *Executor {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = api.DefaultMaxIterations
	}
	policy := cfg.ParallelPolicy
	if policy == "" {
		policy = api.FailFast
	}
	return &Executor{
		observer:      safeObserver{obs},
		maxIterations: maxIter,
		policy:        policy,
	}
}

// Execute runs every node of def against rc. The trigger contract is checked
// before the first node. The returned error is the first unrecovered failure;
// rc holds everything recorded up to that point.
func (e *Executor) Execute(ctx context.Context, run api.RunInfo, def api.GraphDefinition, rc *api.RunContext) error {
	e.observer.OnRunStart(ctx, run)

	if err := def.Trigger.Validate(rc.TriggerData()); err != nil {
		var ce *api.ContractError
		if errors.As(err, &ce) {
			ce.Direction = api.DirectionTrigger
		}
		e.observer.OnRunFailed(ctx, run, rc, err)
		return err
	}

	if err := e.runNodes(ctx, run, def.Nodes, rc); err != nil {
		e.observer.OnRunFailed(ctx, run, rc, err)
		return err
	}

	e.observer.OnRunCompleted(ctx, run, rc)
	return nil
}

func (e *Executor) runNodes(ctx context.Context, run api.RunInfo, nodes []api.Node, rc *api.RunContext) error {
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch n := node.(type) {
		case *api.StepNode:
			err = e.runStep(ctx, run, n.Step, rc, false)
		case *api.ParallelNode:
			err = e.runParallel(ctx, run, n, rc)
		case *api.BranchNode:
			err = e.runBranch(ctx, run, n, rc)
		case *api.LoopNode:
			err = e.runLoop(ctx, run, n, rc)
		default:
			err = fmt.Errorf("%w: unknown node type %T", api.ErrInvalidGraph, node)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runParallel(ctx context.Context, run api.RunInfo, n *api.ParallelNode, rc *api.RunContext) error {
	policy := n.Policy
	if policy == "" {
		policy = e.policy
	}

	if policy == api.AwaitAll {
		errs := make([]error, len(n.Steps))
		var g errgroup.Group
		for i, step := range n.Steps {
			g.Go(func() error {
				errs[i] = e.runStep(ctx, run, step, rc, false)
				return nil
			})
		}
		_ = g.Wait()
		return errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range n.Steps {
		g.Go(func() error {
			return e.runStep(gctx, run, step, rc, false)
		})
	}
	return g.Wait()
}

func (e *Executor) runBranch(ctx context.Context, run api.RunInfo, n *api.BranchNode, rc *api.RunContext) error {
	ok, err := evaluate(api.NodeBranch, "", n.Predicate, rc)
	if err != nil {
		return err
	}
	if ok {
		return e.runNodes(ctx, run, n.Then, rc)
	}
	return e.runNodes(ctx, run, n.Else, rc)
}

func (e *Executor) runLoop(ctx context.Context, run api.RunInfo, n *api.LoopNode, rc *api.RunContext) error {
	limit := n.MaxIterations
	if limit == 0 {
		limit = e.maxIterations
	}

	for iterations := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}

		if n.Mode == api.LoopWhile {
			ok, err := evaluate(api.NodeWhile, n.Step.ID, n.Predicate, rc)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		if limit > 0 && iterations >= limit {
			return &api.IterationLimitError{StepID: n.Step.ID, Mode: n.Mode, Limit: limit}
		}
		iterations++

		if err := e.runStep(ctx, run, n.Step, rc, true); err != nil {
			return err
		}

		if n.Mode == api.LoopUntil {
			ok, err := evaluate(api.NodeUntil, n.Step.ID, n.Predicate, rc)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
}

// evaluate runs a predicate, converting a returned error or a panic into a
// *api.PredicateError.
func evaluate(kind api.NodeKind, stepID string, pred api.Predicate, rc *api.RunContext) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &api.PredicateError{Node: kind, StepID: stepID, Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()

	ok, perr := pred(rc)
	if perr != nil {
		return false, &api.PredicateError{Node: kind, StepID: stepID, Err: perr}
	}
	return ok, nil
}

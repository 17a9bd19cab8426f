package stepgraph

import (
	"context"
	"fmt"

	"github.com/petrijr/stepgraph/pkg/api"
)

// NestedOption customizes a NestedStep.
type NestedOption func(*nestedConfig)

type nestedConfig struct {
	input       func(sc *StepContext) (any, error)
	fold        func(out any) (any, error)
	fallback    any
	hasFallback bool
	opts        []StepOption
}

// WithNestedInput derives the inner run's trigger data from the outer step.
// By default the inner run receives the outer run's trigger data.
func WithNestedInput(fn func(sc *StepContext) (any, error)) NestedOption {
	return func(c *nestedConfig) { c.input = fn }
}

// WithFold maps the selected inner output to the outer step's output.
// The default is the identity.
func WithFold(fn func(out any) (any, error)) NestedOption {
	return func(c *nestedConfig) { c.fold = fn }
}

// WithFallback makes the outer step succeed with value when the inner run
// fails or never produces the selected step's output.
func WithFallback(value any) NestedOption {
	return func(c *nestedConfig) {
		c.fallback = value
		c.hasFallback = true
	}
}

// WithNestedStepOptions applies step options (contracts, description, ...)
// to the outer step.
func WithNestedStepOptions(opts ...StepOption) NestedOption {
	return func(c *nestedConfig) { c.opts = append(c.opts, opts...) }
}

// NestedStep returns a step that starts a fresh, independent run of inner,
// waits for it, and folds the output of innerStepID into its own output.
// The inner run shares nothing with the outer one but the data passed in.
func NestedStep(id string, inner *Workflow, innerStepID string, opts ...NestedOption) Step {
	cfg := nestedConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	fn := func(ctx context.Context, sc *StepContext) (any, error) {
		if inner == nil {
			return nil, fmt.Errorf("nested step %q has no inner workflow", id)
		}

		trigger := sc.TriggerData()
		if cfg.input != nil {
			var err error
			if trigger, err = cfg.input(sc); err != nil {
				return nil, fmt.Errorf("nested input: %w", err)
			}
		}

		out, err := runInner(ctx, id, inner, innerStepID, trigger)
		if err != nil {
			if cfg.hasFallback {
				return cfg.fallback, nil
			}
			return nil, err
		}

		if cfg.fold != nil {
			return cfg.fold(out)
		}
		return out, nil
	}

	return NewStep(id, fn, cfg.opts...)
}

func runInner(ctx context.Context, id string, inner *Workflow, innerStepID string, trigger any) (any, error) {
	res, err := inner.Execute(ctx, trigger)
	if err != nil {
		nerr := &api.NestedRunError{StepID: id, Workflow: inner.Name(), Err: err}
		if res != nil {
			nerr.Context = res.Context
		}
		return nil, nerr
	}

	out, err := res.Output(innerStepID)
	if err != nil {
		return nil, &api.NestedRunError{StepID: id, Workflow: inner.Name(), Err: err, Context: res.Context}
	}
	return out, nil
}

// NestedPrefix returns a fold that renders the inner output as
// prefix followed by its string form.
func NestedPrefix(prefix string) func(out any) (any, error) {
	return func(out any) (any, error) {
		return fmt.Sprintf("%s%v", prefix, out), nil
	}
}

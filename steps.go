package stepgraph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petrijr/stepgraph/pkg/api"
)

// StepOption customizes a step built with NewStep.
type StepOption func(*Step)

// WithInputSchema sets the contract the step input must satisfy.
func WithInputSchema(s *Schema) StepOption {
	return func(st *Step) { st.Input = s }
}

// WithOutputSchema sets the contract the step output must satisfy.
func WithOutputSchema(s *Schema) StepOption {
	return func(st *Step) { st.Output = s }
}

// WithInputFrom makes the output of an earlier step the input of this one.
func WithInputFrom(stepID string) StepOption {
	return func(st *Step) { st.InputFrom = stepID }
}

// WithDescription attaches a human readable description.
func WithDescription(desc string) StepOption {
	return func(st *Step) { st.Description = desc }
}

// WithRetryPolicy retries the step body on error according to p.
func WithRetryPolicy(p RetryPolicy) StepOption {
	return func(st *Step) {
		// Copy so callers can mutate their RetryPolicy after the call
		// without affecting the stored definition.
		r := p
		st.Retry = &r
	}
}

// WithRetry is WithRetryPolicy for a RetryBuilder.
func WithRetry(rb RetryBuilder) StepOption {
	return WithRetryPolicy(rb.Policy())
}

// NewStep creates a step definition.
func NewStep(id string, fn StepFunc, opts ...StepOption) Step {
	s := Step{ID: id, Fn: fn}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// TypedStep wraps a strongly-typed function into a step. The step input is
// converted to I: directly when it already has that type, otherwise through
// a JSON round trip (maps decoded from JSON into structs, for example).
//
//	stepgraph.TypedStep("greet", func(ctx context.Context, in Greeting) (Reply, error) { ... })
func TypedStep[I, O any](id string, fn func(context.Context, I) (O, error), opts ...StepOption) Step {
	body := func(ctx context.Context, sc *StepContext) (any, error) {
		in, err := convert[I](sc.Input)
		if err != nil {
			return nil, fmt.Errorf("step %q input: %w", sc.StepID, err)
		}
		return fn(ctx, in)
	}
	return NewStep(id, body, opts...)
}

func convert[T any](v any) (T, error) {
	var out T
	if v == nil {
		return out, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("convert %T to %T: %w", v, out, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("convert %T to %T: %w", v, out, err)
	}
	return out, nil
}

// SuspendStep returns a logical suspension placeholder. Its output is a
// SuspendMarker; the run does not stop.
func SuspendStep(id string) Step {
	return NewStep(id, func(ctx context.Context, sc *StepContext) (any, error) {
		return api.SuspendMarker{StepID: id, Suspended: true}, nil
	}, WithDescription("suspend placeholder"))
}

// FuncStep adapts a function of the step input only.
func FuncStep(id string, fn func(ctx context.Context, input any) (any, error), opts ...StepOption) Step {
	return NewStep(id, func(ctx context.Context, sc *StepContext) (any, error) {
		return fn(ctx, sc.Input)
	}, opts...)
}

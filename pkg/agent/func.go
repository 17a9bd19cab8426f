package agent

import "context"

// Func adapts a plain function into an Agent.
type Func struct {
	AgentName string
	Fn        func(ctx context.Context, req Request) (*Response, error)
}

var _ Agent = Func{}

// NewFunc returns an Agent named name that answers with fn.
func NewFunc(name string, fn func(ctx context.Context, req Request) (*Response, error)) Func {
	return Func{AgentName: name, Fn: fn}
}

func (f Func) Name() string { return f.AgentName }

func (f Func) Generate(ctx context.Context, req Request) (*Response, error) {
	return f.Fn(ctx, req)
}

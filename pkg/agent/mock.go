package agent

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Compile-time check that MockAgent implements Agent.
var _ Agent = (*MockAgent)(nil)

// MockAgent is a scripted Agent for tests. It records every request and
// answers from a queue of responses, then from GenerateFunc, then with an
// echo of the prompt.
type MockAgent struct {
	// AgentName is the value returned by Name().
	AgentName string

	// GenerateFunc is used once the scripted responses run out.
	GenerateFunc func(ctx context.Context, req Request) (*Response, error)

	mu        sync.Mutex
	responses []scripted
	calls     []Request
}

type scripted struct {
	resp *Response
	err  error
}

// NewMockAgent creates a MockAgent with the given name and default behavior.
func NewMockAgent(name string) *MockAgent {
	return &MockAgent{AgentName: name}
}

// Name returns the agent's identifier.
func (m *MockAgent) Name() string {
	return m.AgentName
}

// Generate records the request and returns the next scripted answer.
func (m *MockAgent) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	var next *scripted
	if len(m.responses) > 0 {
		next = &m.responses[0]
		m.responses = m.responses[1:]
	}
	fn := m.GenerateFunc
	m.mu.Unlock()

	switch {
	case next != nil:
		return next.resp, next.err
	case fn != nil:
		return fn(ctx, req)
	default:
		return &Response{
			Text:     fmt.Sprintf("mock: %s", req.Prompt),
			Duration: time.Millisecond,
		}, nil
	}
}

// Calls returns a copy of every request passed to Generate, in order.
func (m *MockAgent) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// WithText queues a plain-text response. Returns the receiver for chaining.
func (m *MockAgent) WithText(text string) *MockAgent {
	return m.queue(&Response{Text: text}, nil)
}

// WithObject queues a structured response.
func (m *MockAgent) WithObject(obj any) *MockAgent {
	return m.queue(&Response{Object: obj}, nil)
}

// WithError queues a failure.
func (m *MockAgent) WithError(err error) *MockAgent {
	return m.queue(nil, err)
}

// WithGenerateFunc sets the fallback function and returns the receiver.
func (m *MockAgent) WithGenerateFunc(fn func(ctx context.Context, req Request) (*Response, error)) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = fn
	return m
}

func (m *MockAgent) queue(resp *Response, err error) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, scripted{resp: resp, err: err})
	return m
}

// Package agent defines the boundary between workflow steps and generative
// agents. A step hands an agent a prompt and gets text or a structured
// object back; how the agent produces it is outside this package.
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/petrijr/stepgraph/pkg/api"
)

// agentNameRe validates agent names: alphanumeric characters, hyphens,
// dots and underscores, starting with an alphanumeric character.
var agentNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ErrNotFound is returned by Registry.Get when no agent with the requested
// name has been registered.
var ErrNotFound = errors.New("agent not found")

// ErrDuplicateName is returned by Registry.Register when an agent with the
// same name is already present in the registry.
var ErrDuplicateName = errors.New("agent already registered")

// ErrInvalidName is returned by Registry.Register when the agent is nil or
// its name is empty or contains invalid characters.
var ErrInvalidName = errors.New("invalid agent name")

// ErrEmptyPrompt is returned by Generate when the request has no prompt.
var ErrEmptyPrompt = errors.New("empty prompt")

// Agent turns a prompt into a response.
type Agent interface {
	// Name returns the agent's identifier.
	Name() string

	// Generate answers a single request. The context is used for
	// cancellation and timeout.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is one prompt sent to an agent.
type Request struct {
	Prompt string
	System string

	// OutputSchema asks for a structured response. When set, Response.Object
	// must satisfy it.
	OutputSchema *api.Schema
}

// Response is what an agent produced for a Request.
type Response struct {
	Text     string
	Object   any
	Duration time.Duration
}

// Value is the response payload a step should emit: Object when the agent
// produced one, otherwise Text.
func (r *Response) Value() any {
	if r == nil {
		return nil
	}
	if r.Object != nil {
		return r.Object
	}
	return r.Text
}

// Generate calls a and checks the response against the request's output
// schema. Agents are not trusted to honor the schema themselves.
func Generate(ctx context.Context, a Agent, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("agent %q: %w", a.Name(), ErrEmptyPrompt)
	}
	start := time.Now()
	resp, err := a.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", a.Name(), err)
	}
	if resp == nil {
		resp = &Response{}
	}
	if resp.Duration == 0 {
		resp.Duration = time.Since(start)
	}
	if req.OutputSchema != nil {
		if err := req.OutputSchema.Validate(resp.Object); err != nil {
			return resp, fmt.Errorf("agent %q response: %w", a.Name(), err)
		}
	}
	return resp, nil
}

// Registry stores named agent instances for lookup. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// Register adds an agent to the registry under its Name().
// Returns ErrInvalidName if the agent is nil or has an invalid name.
// Returns ErrDuplicateName if an agent with the same name is already registered.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return fmt.Errorf("register agent: %w", ErrInvalidName)
	}
	name := a.Name()
	if !agentNameRe.MatchString(name) {
		return fmt.Errorf("register agent %q: %w", name, ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("register agent %q: %w", name, ErrDuplicateName)
	}
	r.agents[name] = a
	return nil
}

// Get returns the agent registered under the given name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("get agent %q: %w", name, ErrNotFound)
	}
	return a, nil
}

// MustGet returns the agent registered under the given name or panics.
// Only use this in setup code.
func (r *Registry) MustGet(name string) Agent {
	a, err := r.Get(name)
	if err != nil {
		panic(fmt.Sprintf("agent.Registry.MustGet: agent %q not registered", name))
	}
	return a
}

// List returns the names of all registered agents, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether an agent with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

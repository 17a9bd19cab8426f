package stepgraph

import (
	"context"
	"errors"

	"github.com/petrijr/stepgraph/pkg/agent"
)

// PromptFunc builds the prompt an AgentStep sends, from the step's view of
// the run.
type PromptFunc func(sc *StepContext) (string, error)

// AgentOption customizes an AgentStep.
type AgentOption func(*agentStep)

type agentStep struct {
	system   string
	response *Schema
	stepOpts []StepOption
}

// WithSystemPrompt sets Request.System for every call the step makes.
func WithSystemPrompt(system string) AgentOption {
	return func(a *agentStep) { a.system = system }
}

// WithStructuredResponse asks the agent for an object matching s. The same
// schema becomes the step's output contract.
func WithStructuredResponse(s *Schema) AgentOption {
	return func(a *agentStep) { a.response = s }
}

// WithAgentStepOptions forwards options to the underlying step.
func WithAgentStepOptions(opts ...StepOption) AgentOption {
	return func(a *agentStep) { a.stepOpts = append(a.stepOpts, opts...) }
}

// AgentStep is a step whose body asks ag to answer the prompt built by
// prompt. The step output is the response object when the agent produced
// one, otherwise its text.
func AgentStep(id string, ag agent.Agent, prompt PromptFunc, opts ...AgentOption) Step {
	cfg := &agentStep{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	fn := func(ctx context.Context, sc *StepContext) (any, error) {
		if ag == nil {
			return nil, errors.New("agent step has no agent")
		}
		if prompt == nil {
			return nil, errors.New("agent step has no prompt")
		}
		text, err := prompt(sc)
		if err != nil {
			return nil, err
		}
		resp, err := agent.Generate(ctx, ag, agent.Request{
			Prompt:       text,
			System:       cfg.system,
			OutputSchema: cfg.response,
		})
		if err != nil {
			return nil, err
		}
		return resp.Value(), nil
	}

	stepOpts := cfg.stepOpts
	if cfg.response != nil {
		stepOpts = append([]StepOption{WithOutputSchema(cfg.response)}, stepOpts...)
	}
	return NewStep(id, fn, stepOpts...)
}

// PromptFromInput uses the step input as the prompt when it is a string.
func PromptFromInput(sc *StepContext) (string, error) {
	s, ok := sc.Input.(string)
	if !ok {
		return "", errors.New("step input is not a string")
	}
	return s, nil
}

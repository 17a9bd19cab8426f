package stepgraph

import (
	"context"

	"github.com/petrijr/stepgraph/pkg/api"
)

func stringSchema() *Schema { return api.String() }

// constStep returns a step that always outputs v.
func constStep(id string, v any, opts ...StepOption) Step {
	return NewStep(id, func(ctx context.Context, sc *StepContext) (any, error) {
		return v, nil
	}, opts...)
}

// userSteps drops the memory bookends from a list of step ids.
func userSteps(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == MemoryLoadStepID || id == MemorySaveStepID {
			continue
		}
		out = append(out, id)
	}
	return out
}

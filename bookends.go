package stepgraph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/stepgraph/internal/persistence"
	"github.com/petrijr/stepgraph/pkg/api"
)

// withMemoryBookends is the single transformation applied to every graph at
// commit: it puts the memory load step in front of the user nodes and the
// memory save step behind them.
func withMemoryBookends(nodes []api.Node, mem api.Memory, threadKey string, logger *slog.Logger) []api.Node {
	out := make([]api.Node, 0, len(nodes)+2)
	out = append(out, &api.StepNode{Step: memoryLoadStep(mem, threadKey)})
	out = append(out, nodes...)
	out = append(out, &api.StepNode{Step: memorySaveStep(mem, logger)})
	return out
}

func memoryLoadStep(mem api.Memory, threadKey string) api.StepDefinition {
	return api.StepDefinition{
		ID:          api.MemoryLoadStepID,
		Description: "load prior memory for the run's thread",
		Fn: func(ctx context.Context, sc *api.StepContext) (any, error) {
			threadID := resolveThreadID(sc.TriggerData(), threadKey)

			state, err := mem.Load(ctx, threadID)
			if err != nil {
				return nil, fmt.Errorf("load thread %q: %w", threadID, err)
			}

			snap := api.MemorySnapshot{ThreadID: threadID, Values: map[string]any{}}
			if state != nil {
				snap.Found = true
				if state.Values != nil {
					snap.Values = maps.Clone(state.Values)
				}
			}
			sc.BindThread(threadID, snap.Values)
			return snap, nil
		},
	}
}

// memorySaveStep merges the run's successful outputs into the thread values.
// Stores that serialize values get only the outputs they can encode; the
// others are logged and left out of the saved state.
func memorySaveStep(mem api.Memory, logger *slog.Logger) api.StepDefinition {
	enc, _ := mem.(persistence.Encoder)
	if logger == nil {
		logger = slog.Default()
	}
	return api.StepDefinition{
		ID:          api.MemorySaveStepID,
		Description: "save updated memory for the run's thread",
		Fn: func(ctx context.Context, sc *api.StepContext) (any, error) {
			values := sc.Memory()
			if values == nil {
				values = map[string]any{}
			}
			for _, res := range sc.Results() {
				if isBookend(res.StepID) || res.Status != api.StepSucceeded || res.Output == nil {
					continue
				}
				if enc != nil {
					if err := enc.Encodable(res.Output); err != nil {
						logger.WarnContext(ctx, "memory_value_skipped",
							slog.String("workflow", sc.WorkflowName()),
							slog.String("run_id", sc.RunID()),
							slog.String("thread_id", sc.ThreadID()),
							slog.String("step", res.StepID),
							slog.String("type", fmt.Sprintf("%T", res.Output)),
							slog.Any("error", err))
						continue
					}
				}
				values[res.StepID] = res.Output
			}

			state := &api.ThreadState{
				ThreadID:  sc.ThreadID(),
				Values:    values,
				UpdatedAt: time.Now().UTC(),
			}
			if err := mem.Save(ctx, state); err != nil {
				return nil, fmt.Errorf("save thread %q: %w", state.ThreadID, err)
			}
			return api.MemorySnapshot{ThreadID: state.ThreadID, Values: maps.Clone(values), Found: true}, nil
		},
	}
}

// resolveThreadID picks the thread a run belongs to: the trigger's own
// ThreadID, then the trigger field named by key, then a fresh UUID.
func resolveThreadID(trigger any, key string) string {
	if ti, ok := trigger.(api.ThreadIdentifier); ok {
		if id := ti.ThreadID(); id != "" {
			return id
		}
	}
	if v, ok := api.Lookup(trigger, key); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return uuid.NewString()
}

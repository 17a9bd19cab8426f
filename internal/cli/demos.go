package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/petrijr/stepgraph"
	"github.com/petrijr/stepgraph/pkg/agent"
	"github.com/petrijr/stepgraph/pkg/api"
)

// demo is a built-in graph the CLI can run.
type demo struct {
	Name        string
	Description string
	Build       func(logger *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error)
}

// triggerSchema is shared by every demo: {"dynamicInput": string}.
var triggerSchema = api.Object(api.Required("dynamicInput", api.String()))

var demos = map[string]demo{}

func registerDemo(d demo) {
	if _, dup := demos[d.Name]; dup {
		panic(fmt.Sprintf("cli: demo %q registered twice", d.Name))
	}
	demos[d.Name] = d
}

func lookupDemo(name string) (demo, error) {
	d, ok := demos[name]
	if !ok {
		return demo{}, fmt.Errorf("unknown workflow %q (see 'stepgraph list')", name)
	}
	return d, nil
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for n := range demos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// buildRegistry commits every demo with the same options.
func buildRegistry(logger *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Registry, error) {
	reg := stepgraph.NewRegistry()
	for _, name := range demoNames() {
		wf, err := demos[name].Build(logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		if err := reg.Register(wf); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func dynamicInput(sc *stepgraph.StepContext) (string, error) {
	v, ok := api.Lookup(sc.TriggerData(), "dynamicInput")
	if !ok {
		return "", errors.New("trigger has no dynamicInput")
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("dynamicInput is %T, want string", v)
	}
	return s, nil
}

func firstProcessing() stepgraph.Step {
	return stepgraph.NewStep("step1", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
		in, err := dynamicInput(sc)
		if err != nil {
			return nil, err
		}
		return "First processing: " + in, nil
	}, stepgraph.WithOutputSchema(api.String()))
}

func secondProcessing() stepgraph.Step {
	return stepgraph.NewStep("step2", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
		return fmt.Sprintf("Second processing: %v", sc.Input), nil
	}, stepgraph.WithInputFrom("step1"), stepgraph.WithInputSchema(api.String()))
}

func chained(opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
	return stepgraph.NewChained("chained", firstProcessing(), secondProcessing(), opts...)
}

func init() {
	registerDemo(demo{
		Name:        "chained",
		Description: "two steps, the second reads the first",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			return chained(opts...)
		},
	})

	registerDemo(demo{
		Name:        "parallel",
		Description: "upper-cases and measures the input concurrently, then merges",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			upper := stepgraph.NewStep("upper", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
				in, err := dynamicInput(sc)
				return strings.ToUpper(in), err
			})
			length := stepgraph.NewStep("length", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
				in, err := dynamicInput(sc)
				return len(in), err
			})
			merge := stepgraph.NewStep("merge", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
				up, err := sc.Output("upper")
				if err != nil {
					return nil, err
				}
				n, err := sc.Output("length")
				if err != nil {
					return nil, err
				}
				return fmt.Sprintf("%v (%v chars)", up, n), nil
			})
			return stepgraph.Build("parallel", func(b *stepgraph.Builder) {
				b.Parallel(upper, length).Then(merge)
			}, opts...)
		},
	})

	registerDemo(demo{
		Name:        "branching",
		Description: "labels the input long or short",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			isLong := func(rc *stepgraph.RunContext) (bool, error) {
				v, _ := api.Lookup(rc.TriggerData(), "dynamicInput")
				s, _ := v.(string)
				return len(s) > 5, nil
			}
			label := func(id, text string) stepgraph.Step {
				return stepgraph.FuncStep(id, func(context.Context, any) (any, error) { return text, nil })
			}
			return stepgraph.NewBranching("branching", isLong, label("long", "long input"), label("short", "short input"), opts...)
		},
	})

	registerDemo(demo{
		Name:        "retry",
		Description: "re-runs a step until it has been attempted three times",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			attempt := stepgraph.NewStep("attempt", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
				return sc.Attempt, nil
			})
			done := func(rc *stepgraph.RunContext) (bool, error) {
				n, err := api.OutputAs[int](rc, "attempt")
				return n >= 3, err
			}
			return stepgraph.NewRetry("retry", attempt, done, opts...)
		},
	})

	registerDemo(demo{
		Name:        "loop",
		Description: "appends to the input while it is shorter than 20 characters",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			grow := stepgraph.NewStep("grow", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
				if prev, ok := sc.Result("grow"); ok {
					return fmt.Sprintf("%v+", prev.Output), nil
				}
				return dynamicInput(sc)
			})
			short := func(rc *stepgraph.RunContext) (bool, error) {
				s, err := api.OutputAs[string](rc, "grow")
				if errors.Is(err, api.ErrStepNotExecuted) {
					return true, nil
				}
				return len(s) < 20, err
			}
			return stepgraph.NewLoop("loop", grow, short, opts...)
		},
	})

	registerDemo(demo{
		Name:        "nested",
		Description: "runs the chained graph as a single step",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			inner, err := chained(opts...)
			if err != nil {
				return nil, err
			}
			return stepgraph.NewWrapped("nested", "wrapped", inner, "step2", opts...)
		},
	})

	registerDemo(demo{
		Name:        "safe",
		Description: "runs a failing inner graph and falls back to a fixed value",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			inner, err := stepgraph.NewSimple("unstable", stepgraph.FuncStep("explode", func(context.Context, any) (any, error) {
				return nil, errors.New("inner step failed")
			}), opts...)
			if err != nil {
				return nil, err
			}
			return stepgraph.NewSafe("safe", "guarded", inner, "explode", "fallback value", opts...)
		},
	})

	registerDemo(demo{
		Name:        "audited",
		Description: "surrounds the first processing step with audit log steps",
		Build: func(logger *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			return stepgraph.NewAudited("audited", firstProcessing(), logger, opts...)
		},
	})

	registerDemo(demo{
		Name:        "agent",
		Description: "asks a scripted agent to summarize the input",
		Build: func(_ *slog.Logger, opts ...stepgraph.Option) (*stepgraph.Workflow, error) {
			echo := agent.NewMockAgent("echo")
			prompt := func(sc *stepgraph.StepContext) (string, error) {
				in, err := dynamicInput(sc)
				return "Summarize: " + in, err
			}
			return stepgraph.NewSimple("agent", stepgraph.AgentStep("summary", echo, prompt), opts...)
		},
	})
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petrijr/stepgraph"
	"github.com/petrijr/stepgraph/internal/config"
	"github.com/petrijr/stepgraph/pkg/api"
)

type runOutput struct {
	RunID    string       `json:"runId"`
	Workflow string       `json:"workflow"`
	Status   string       `json:"status"`
	ThreadID string       `json:"threadId,omitempty"`
	Steps    []stepOutput `json:"steps"`
	Error    string       `json:"error,omitempty"`
}

type stepOutput struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Output   any    `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
	Duration string `json:"duration"`
}

func newRunCmd(a *app) *cobra.Command {
	var (
		input  string
		thread string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a built-in workflow",
		Example: `  stepgraph run chained --input '{"dynamicInput":"hello"}'
  stepgraph run loop --thread demo-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, args[0], input, thread)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", `{"dynamicInput":"hello"}`, "Trigger data as a JSON object")
	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Thread id for memory (default: generated per run)")
	return cmd
}

func (a *app) run(ctx context.Context, name, input, thread string) error {
	d, err := lookupDemo(name)
	if err != nil {
		return err
	}

	trigger := map[string]any{}
	if err := json.Unmarshal([]byte(input), &trigger); err != nil {
		return fmt.Errorf("parse --input: %w", err)
	}
	if thread != "" {
		trigger[api.DefaultThreadKey] = thread
	}

	mem, closeMem, err := config.OpenMemory(ctx, a.cfg.Memory)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeMem(); cerr != nil {
			a.logger.Warn("close memory", "error", cerr)
		}
	}()

	reg, err := buildRegistry(a.logger,
		stepgraph.WithTriggerSchema(triggerSchema),
		stepgraph.WithMemory(mem),
		stepgraph.WithMaxIterations(a.cfg.Engine.MaxIterations),
		stepgraph.WithParallelPolicy(api.ParallelPolicy(a.cfg.Engine.ParallelPolicy)),
		stepgraph.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	wf, err := reg.Get(d.Name)
	if err != nil {
		return err
	}

	res, runErr := wf.Execute(ctx, trigger)
	if res == nil {
		return runErr
	}
	if err := a.printJSON(summarize(res)); err != nil {
		return err
	}
	return runErr
}

func summarize(res *stepgraph.RunResult) runOutput {
	out := runOutput{
		RunID:    res.RunID,
		Workflow: res.Workflow,
		Status:   string(res.Status),
		Steps:    []stepOutput{},
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if res.Context == nil {
		return out
	}
	out.ThreadID = res.Context.ThreadID()
	for _, r := range res.Context.Results() {
		s := stepOutput{
			ID:       r.StepID,
			Status:   string(r.Status),
			Output:   r.Output,
			Attempts: r.Attempts,
			Duration: r.Duration.String(),
		}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		out.Steps = append(out.Steps, s)
	}
	return out
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

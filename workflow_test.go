package stepgraph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petrijr/stepgraph/pkg/api"
)

func chainedWorkflow(t *testing.T, opts ...Option) *Workflow {
	t.Helper()

	first := NewStep("step1", func(ctx context.Context, sc *StepContext) (any, error) {
		v, _ := api.Lookup(sc.Input, "dynamicInput")
		return fmt.Sprintf("First processing: %v", v), nil
	}, WithOutputSchema(api.String()))
	second := NewStep("step2", func(ctx context.Context, sc *StepContext) (any, error) {
		return fmt.Sprintf("Second processing: %v", sc.Input), nil
	}, WithInputFrom("step1"), WithInputSchema(api.String()))

	opts = append([]Option{WithTriggerSchema(api.Object(api.Required("dynamicInput", api.String())))}, opts...)
	wf, err := NewChained("chained", first, second, opts...)
	if err != nil {
		t.Fatalf("build chained workflow: %v", err)
	}
	return wf
}

func TestWorkflow_ChainedEndToEnd(t *testing.T) {
	rec := NewEventRecorder()
	wf := chainedWorkflow(t, WithObserver(rec))

	res, err := wf.Execute(context.Background(), map[string]any{"dynamicInput": "hello"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.Succeeded() || res.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", res.Status)
	}

	out, err := res.Output("step2")
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if out != "Second processing: First processing: hello" {
		t.Fatalf("unexpected output %q", out)
	}

	want := []string{MemoryLoadStepID, "step1", "step2", MemorySaveStepID}
	if got := res.Context.StepIDs(); !slices.Equal(got, want) {
		t.Fatalf("unexpected result order %v", got)
	}
	if got := rec.StepOrder(res.RunID); !slices.Equal(got, want) {
		t.Fatalf("unexpected observed order %v", got)
	}

	events := rec.ForRun(res.RunID)
	if events[0].Type != api.EventRunStarted || events[len(events)-1].Type != api.EventRunCompleted {
		t.Fatalf("run events must bracket step events: %+v", events)
	}
}

func TestWorkflow_TriggerContractFailsBeforeAnyStep(t *testing.T) {
	wf := chainedWorkflow(t)

	res, err := wf.Execute(context.Background(), map[string]any{"dynamicInput": 42})
	var ce *ContractError
	if !errors.As(err, &ce) || ce.Direction != api.DirectionTrigger {
		t.Fatalf("expected trigger contract error, got %v", err)
	}
	if ce.Path != "$.dynamicInput" {
		t.Fatalf("unexpected violation path %q", ce.Path)
	}
	if res.Status != StatusFailed || res.Context.Len() != 0 {
		t.Fatalf("no step may run on a bad trigger, got %d results", res.Context.Len())
	}
}

func TestWorkflow_FailureKeepsPartialResults(t *testing.T) {
	boom := errors.New("boom")
	wf := New("partial").
		Step(constStep("a", "ok")).
		Then(NewStep("b", func(ctx context.Context, sc *StepContext) (any, error) {
			return nil, boom
		})).
		Then(constStep("c", "never")).
		MustCommit()

	res, err := wf.Execute(context.Background(), nil)

	var se *StepError
	if !errors.As(err, &se) || se.StepID != "b" || !errors.Is(err, boom) {
		t.Fatalf("expected *StepError for b, got %v", err)
	}
	if res.Err != err || res.Status != StatusFailed {
		t.Fatalf("RunResult must carry the error")
	}
	if out, _ := res.Output("a"); out != "ok" {
		t.Fatalf("partial result of a lost: %v", out)
	}
	if r := res.Results()["b"]; r.Status != StepErrored {
		t.Fatalf("expected b recorded as error, got %+v", r)
	}
	if _, err := res.Output("c"); !errors.Is(err, ErrStepNotExecuted) {
		t.Fatalf("c must not run, got %v", err)
	}
	if res.Context.Succeeded(MemorySaveStepID) {
		t.Fatalf("memory must not be saved for a failed run")
	}
}

func TestWorkflow_PanicInStepFailsRun(t *testing.T) {
	wf := New("panicky").Step(NewStep("p", func(ctx context.Context, sc *StepContext) (any, error) {
		panic("kaboom")
	})).MustCommit()

	_, err := wf.Execute(context.Background(), nil)
	var se *StepError
	if !errors.As(err, &se) || !se.Panic {
		t.Fatalf("expected panic StepError, got %v", err)
	}
}

func TestWorkflow_BranchTakesElse(t *testing.T) {
	isLong := When(func(rc *RunContext) bool {
		s, _ := TriggerAs[string](rc)
		return len(s) > 5
	})
	wf, err := NewBranching("label", isLong, constStep("long", "long"), constStep("short", "short"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	res, err := wf.Execute(context.Background(), "hi")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := userSteps(res.Context.StepIDs()); !slices.Equal(got, []string{"short"}) {
		t.Fatalf("unexpected executed steps %v", got)
	}
}

func TestWorkflow_PredicateErrorFailsRun(t *testing.T) {
	bad := func(rc *RunContext) (bool, error) { return false, errors.New("cannot decide") }
	wf := New("pred").If(bad).Step(constStep("x", 1)).EndIf().MustCommit()

	_, err := wf.Execute(context.Background(), nil)
	var pe *PredicateError
	if !errors.As(err, &pe) || pe.Node != api.NodeBranch {
		t.Fatalf("expected branch PredicateError, got %v", err)
	}

	panicky := func(rc *RunContext) (bool, error) { panic("oops") }
	wf = New("pred-panic").Until(panicky, constStep("x", 1)).MustCommit()
	_, err = wf.Execute(context.Background(), nil)
	if !errors.As(err, &pe) || !pe.Panic || pe.StepID != "x" {
		t.Fatalf("expected panicking until PredicateError, got %v", err)
	}
}

func TestWorkflow_UntilReplacesResultAndCountsAttempts(t *testing.T) {
	counter := NewStep("count", func(ctx context.Context, sc *StepContext) (any, error) {
		return sc.Attempt, nil
	})
	reachedThree := When(func(rc *RunContext) bool {
		n, _ := OutputAs[int](rc, "count")
		return n >= 3
	})

	wf, err := NewRetry("until", counter, reachedThree)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := wf.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	r := res.Results()["count"]
	if r.Output != 3 || r.Attempts != 3 {
		t.Fatalf("expected third iteration result, got %+v", r)
	}
	if got := userSteps(res.Context.StepIDs()); !slices.Equal(got, []string{"count"}) {
		t.Fatalf("loop must keep a single entry, got %v", got)
	}
}

func TestWorkflow_WhileMayRunZeroTimes(t *testing.T) {
	never := When(func(rc *RunContext) bool { return false })
	wf, err := NewLoop("while-none", constStep("body", 1), never)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := wf.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := res.Context.Result("body"); ok {
		t.Fatalf("while body must not run when the predicate is false")
	}
}

func TestWorkflow_LoopIterationLimit(t *testing.T) {
	always := When(func(rc *RunContext) bool { return true })

	wf := New("runaway", WithMaxIterations(5)).While(always, constStep("spin", 1)).MustCommit()
	_, err := wf.Execute(context.Background(), nil)
	var le *IterationLimitError
	if !errors.As(err, &le) || le.Limit != 5 || !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("expected iteration limit of 5, got %v", err)
	}

	// A per-loop limit overrides the workflow default.
	wf = New("runaway-2", WithMaxIterations(5)).
		While(always, constStep("spin", 1), WithLoopLimit(2)).
		MustCommit()
	res, err := wf.Execute(context.Background(), nil)
	if !errors.As(err, &le) || le.Limit != 2 {
		t.Fatalf("expected iteration limit of 2, got %v", err)
	}
	if r := res.Results()["spin"]; r.Attempts != 2 {
		t.Fatalf("expected 2 iterations before the limit, got %d", r.Attempts)
	}
}

func TestWorkflow_UnboundedLoop(t *testing.T) {
	n := 0
	body := NewStep("inc", func(ctx context.Context, sc *StepContext) (any, error) {
		n++
		return n, nil
	})
	done := When(func(rc *RunContext) bool {
		v, _ := OutputAs[int](rc, "inc")
		return v >= api.DefaultMaxIterations+10
	})

	wf := New("unbounded", WithMaxIterations(Unbounded)).Until(done, body).MustCommit()
	if _, err := wf.Execute(context.Background(), nil); err != nil {
		t.Fatalf("unbounded loop must not hit a limit: %v", err)
	}
}

func TestWorkflow_ParallelRunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	var gate sync.WaitGroup
	gate.Add(3)

	member := func(id string) Step {
		return NewStep(id, func(ctx context.Context, sc *StepContext) (any, error) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			gate.Done()
			gate.Wait()
			inFlight.Add(-1)
			return id, nil
		})
	}
	merge := NewStep("merge", func(ctx context.Context, sc *StepContext) (any, error) {
		var out []string
		for _, id := range []string{"x", "y", "z"} {
			v, err := OutputAs[string](sc.RunContext, id)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	})

	wf, err := NewParallelMerge("fan-out", []Step{member("x"), member("y"), member("z")}, merge)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := wf.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if peak.Load() != 3 {
		t.Fatalf("expected all members in flight together, peak was %d", peak.Load())
	}
	out, _ := OutputAs[[]string](res.Context, "merge")
	if !slices.Equal(out, []string{"x", "y", "z"}) {
		t.Fatalf("unexpected merge output %v", out)
	}
}

func TestWorkflow_ParallelFailFastCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	failing := NewStep("fail", func(ctx context.Context, sc *StepContext) (any, error) {
		return nil, boom
	})
	slow := NewStep("slow", func(ctx context.Context, sc *StepContext) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "finished", nil
		}
	})

	wf := New("fail-fast").Parallel(failing, slow).Then(constStep("after", 1)).MustCommit()

	start := time.Now()
	res, err := wf.Execute(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("fail-fast did not cancel the slow sibling")
	}
	if res.Context.Succeeded("slow") || res.Context.Succeeded("after") {
		t.Fatalf("no step may succeed after a fail-fast failure")
	}
}

func TestWorkflow_ParallelAwaitAllJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	fail := func(id string, e error) Step {
		return NewStep(id, func(ctx context.Context, sc *StepContext) (any, error) { return nil, e })
	}

	wf := New("await-all", WithParallelPolicy(AwaitAll)).
		Parallel(fail("a", errA), fail("b", errB), constStep("c", "ok")).
		MustCommit()

	res, err := wf.Execute(context.Background(), nil)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both member errors, got %v", err)
	}
	if out, _ := res.Output("c"); out != "ok" {
		t.Fatalf("await-all must let every member finish, c = %v", out)
	}
}

func TestWorkflow_ParallelGroupPolicyOverridesDefault(t *testing.T) {
	errA := errors.New("a failed")
	wf := New("override", WithParallelPolicy(FailFast)).
		ParallelWith(AwaitAll,
			NewStep("a", func(ctx context.Context, sc *StepContext) (any, error) { return nil, errA }),
			NewStep("b", func(ctx context.Context, sc *StepContext) (any, error) {
				time.Sleep(20 * time.Millisecond)
				return "b", ctx.Err()
			})).
		MustCommit()

	res, _ := wf.Execute(context.Background(), nil)
	if !res.Context.Succeeded("b") {
		t.Fatalf("b must complete under the group's await-all policy")
	}
}

func TestWorkflow_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wf := New("cancelled").
		Step(NewStep("a", func(ctx context.Context, sc *StepContext) (any, error) {
			cancel()
			return 1, nil
		})).
		Then(constStep("b", 2)).
		MustCommit()

	res, err := wf.Execute(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := res.Context.Result("b"); ok {
		t.Fatalf("b must not run after cancellation")
	}
}

func TestWorkflow_RunStartsOnce(t *testing.T) {
	wf := New("once").Step(constStep("a", 1)).MustCommit()
	run := wf.CreateRun(WithRunID("run-42"))
	if run.ID() != "run-42" {
		t.Fatalf("unexpected run id %q", run.ID())
	}

	res, err := run.Start(context.Background(), nil)
	if err != nil || res.RunID != "run-42" || res.Workflow != "once" {
		t.Fatalf("unexpected first start: %+v, %v", res, err)
	}
	if _, err := run.Start(context.Background(), nil); !errors.Is(err, ErrRunAlreadyStarted) {
		t.Fatalf("expected ErrRunAlreadyStarted, got %v", err)
	}
}

func TestWorkflow_ConcurrentRunsAreIsolated(t *testing.T) {
	echo := NewStep("echo", func(ctx context.Context, sc *StepContext) (any, error) {
		return sc.Input, nil
	})
	wf := New("isolated").Step(echo).MustCommit()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := Execute(context.Background(), wf, i)
			if err != nil {
				errs <- err
				return
			}
			if out, _ := res.Output("echo"); out != i {
				errs <- fmt.Errorf("run %d saw %v", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestWorkflow_MemoryPersistsAcrossRunsOnThread(t *testing.T) {
	mem := NewInMemoryMemory()
	counter := NewStep("visits", func(ctx context.Context, sc *StepContext) (any, error) {
		prev, _ := sc.MemoryValue("visits")
		n, _ := prev.(int)
		return n + 1, nil
	})
	wf := New("visits", WithMemory(mem)).Step(counter).MustCommit()

	trigger := map[string]any{"threadId": "thread-1"}
	for want := 1; want <= 3; want++ {
		res, err := wf.Execute(context.Background(), trigger)
		if err != nil {
			t.Fatalf("run %d failed: %v", want, err)
		}
		if out, _ := res.Output("visits"); out != want {
			t.Fatalf("run %d: expected %d visits, got %v", want, want, out)
		}
		if res.Context.ThreadID() != "thread-1" {
			t.Fatalf("unexpected thread %q", res.Context.ThreadID())
		}
	}

	state, err := mem.Load(context.Background(), "thread-1")
	if err != nil || state == nil {
		t.Fatalf("expected saved thread, got %v, %v", state, err)
	}
	if state.Values["visits"] != 3 {
		t.Fatalf("unexpected saved values %v", state.Values)
	}
	if _, ok := state.Values[MemoryLoadStepID]; ok {
		t.Fatalf("bookend outputs must not be saved")
	}

	// Another thread starts from scratch.
	res, err := wf.Execute(context.Background(), map[string]any{"threadId": "thread-2"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out, _ := res.Output("visits"); out != 1 {
		t.Fatalf("new thread must not see other threads' memory, got %v", out)
	}
}

type ticket struct{ id string }

func (t ticket) ThreadID() string { return "ticket-" + t.id }

func TestWorkflow_ThreadResolution(t *testing.T) {
	wf := New("threads").Step(constStep("a", 1)).MustCommit()

	res, _ := wf.Execute(context.Background(), ticket{id: "7"})
	if res.Context.ThreadID() != "ticket-7" {
		t.Fatalf("ThreadIdentifier must win, got %q", res.Context.ThreadID())
	}

	res, _ = wf.Execute(context.Background(), "no thread here")
	first := res.Context.ThreadID()
	res, _ = wf.Execute(context.Background(), "no thread here")
	if first == "" || first == res.Context.ThreadID() {
		t.Fatalf("runs without a thread id must get fresh ids, got %q and %q", first, res.Context.ThreadID())
	}

	custom := New("custom-key", WithThreadKey("conversation")).Step(constStep("a", 1)).MustCommit()
	res, _ = custom.Execute(context.Background(), map[string]any{"conversation": "c-1"})
	if res.Context.ThreadID() != "c-1" {
		t.Fatalf("custom thread key ignored, got %q", res.Context.ThreadID())
	}
}

func TestWorkflow_LoadSnapshotReportsFound(t *testing.T) {
	wf := New("snap").Step(constStep("a", "v")).MustCommit()
	trigger := map[string]any{"threadId": "t"}

	res, _ := wf.Execute(context.Background(), trigger)
	snap, _ := OutputAs[MemorySnapshot](res.Context, MemoryLoadStepID)
	if snap.Found {
		t.Fatalf("first run must not find the thread")
	}

	res, _ = wf.Execute(context.Background(), trigger)
	snap, _ = OutputAs[MemorySnapshot](res.Context, MemoryLoadStepID)
	if !snap.Found || snap.Values["a"] != "v" {
		t.Fatalf("second run must see saved memory, got %+v", snap)
	}
}

type failingMemory struct{ err error }

func (m failingMemory) Load(ctx context.Context, threadID string) (*ThreadState, error) {
	return nil, m.err
}

func (m failingMemory) Save(ctx context.Context, state *ThreadState) error { return m.err }

func TestWorkflow_MemoryLoadFailureFailsRun(t *testing.T) {
	down := errors.New("store down")
	wf := New("mem-down", WithMemory(failingMemory{err: down})).Step(constStep("a", 1)).MustCommit()

	res, err := wf.Execute(context.Background(), nil)
	if !errors.Is(err, down) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, ok := res.Context.Result("a"); ok {
		t.Fatalf("no user step may run when memory cannot be loaded")
	}
}

type panickingObserver struct{ NoopObserver }

func (panickingObserver) OnStepStart(ctx context.Context, run RunInfo, stepID string, attempt int) {
	panic("observer bug")
}

func TestWorkflow_ObserverPanicDoesNotFailRun(t *testing.T) {
	metrics := &BasicMetrics{}
	wf := New("observed", WithObserver(panickingObserver{}), WithObserver(metrics)).
		Step(constStep("a", 1)).
		MustCommit()

	if _, err := wf.Execute(context.Background(), nil); err != nil {
		t.Fatalf("observer panic leaked into the run: %v", err)
	}
	if snap := metrics.Snapshot(); snap.RunsCompleted != 1 {
		t.Fatalf("expected 1 completed run, got %+v", snap)
	}
}

// Package stepgraph provides a small, embeddable engine for composing and
// running step graphs in Go.
//
// A workflow is a graph of steps declared with a fluent Builder, validated
// and frozen by Commit, and executed in-process by Run. There are no
// workers, queues or schedulers: a run executes on the calling goroutine
// (plus one goroutine per member of a parallel group) and returns when the
// graph is done.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Step
//  2. Builder
//  3. Workflow
//  4. Run
//  5. Memory
//
// # Step
//
// A Step is an id, a StepFunc body and optional contracts:
//
//	greet := stepgraph.NewStep("greet", func(ctx context.Context, sc *stepgraph.StepContext) (any, error) {
//	    return "hello " + sc.Input.(string), nil
//	}, stepgraph.WithInputSchema(api.String()))
//
// The input of a step is the run's trigger data unless WithInputFrom names an
// earlier step, in which case it is that step's output. Input and output
// contracts (see Schema) are checked at the step boundary; a violation fails
// the step with a *ContractError and is never retried.
//
// TypedStep, FuncStep and AgentStep adapt plain functions and agents into
// steps. NestedStep runs another committed workflow as a single step.
//
// # Builder
//
// Builder composes nodes in order:
//
//   - Step and Then append sequential steps
//   - Parallel runs a group of steps concurrently under FailFast or AwaitAll
//   - If, Else and EndIf declare conditional branches
//   - Until and While repeat one step under a predicate, capped by
//     WithMaxIterations or WithLoopLimit
//
// Composition errors are collected rather than panicking and are returned by
// Commit. Once committed, a graph cannot be changed.
//
// # Workflow and Run
//
// Commit returns an immutable Workflow that may be executed any number of
// times concurrently. Each execution is a Run with its own RunContext:
// the trigger data and the insertion-ordered results of every step. A Run
// can be started only once.
//
//	wf, err := stepgraph.New("greeting").Step(greet).Commit()
//	res, err := wf.Execute(ctx, "world")
//	out, _ := res.Output("greet")
//
// When a run fails, the RunResult still carries every result recorded
// before the failure.
//
// # Memory
//
// Every committed graph begins with the "memory.load" step and ends with the
// "memory.save" step. The load step picks a thread id (the trigger's
// ThreadID method, then its "threadId" field, then a fresh UUID) and reads
// that thread's values from the workflow's Memory. The save step merges the
// successful outputs of the run into those values and writes them back, so
// later runs on the same thread see them through StepContext.MemoryValue.
//
// Stores are available for process memory, SQLite, PostgreSQL, Redis and
// MongoDB:
//
//	db, _ := sql.Open("sqlite", "file:stepgraph.db")
//	mem, _ := stepgraph.NewSQLiteMemory(db)
//	wf, _ := stepgraph.New("chat", stepgraph.WithMemory(mem)).Step(reply).Commit()
//
// Values are gob encoded by the durable stores; custom types stored in
// memory must be registered with gob.Register. An output the store cannot
// encode is left out of the saved state and reported to the workflow's
// logger (see WithLogger); the run itself still completes.
//
// # Observability
//
// Observers receive run and step lifecycle events. LoggingObserver writes
// structured slog records, BasicMetrics keeps counters in memory,
// TracingObserver emits OpenTelemetry spans and metrics and EventRecorder
// keeps a run history for tests. A panicking observer never fails a run.
//
// # Registry and CLI
//
// Registry maps names to committed workflows. The stepgraph command in
// cmd/stepgraph uses one to list and run the bundled demo workflows:
//
//	stepgraph run chained --input '{"dynamicInput":"hello"}'
package stepgraph

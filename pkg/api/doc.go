// Package api contains the core building blocks used by the stepgraph
// workflow engine: the graph model, steps and their contracts, the per-run
// context, memory and observability interfaces, and the error types.
//
// Most users interact with the higher-level stepgraph package, which
// re-exports selected types and helpers from this package. The api package
// is intended for custom integrations (memory backends, observers) and for
// contributors extending the engine itself.
//
// # Graphs
//
// A GraphDefinition is an ordered list of nodes:
//
//   - StepNode runs one step.
//   - ParallelNode runs its steps concurrently, under a ParallelPolicy.
//   - BranchNode evaluates a Predicate once and runs exactly one side.
//   - LoopNode re-runs a step while or until a Predicate holds, bounded by
//     an iteration cap unless it is Unbounded.
//
// Definitions are immutable once committed. The engine never changes a
// definition while running it.
//
// # Steps and Contracts
//
// A StepDefinition pairs an id with a StepFunc and optional input and output
// Schemas. Inputs are validated before the body runs, outputs after it
// returns. A violation fails the step with a *ContractError and is never
// retried.
//
// # Run Context
//
// Every run owns a RunContext: the immutable trigger data plus the results
// of the steps executed so far, in execution order. Step bodies read earlier
// results through the StepContext they receive.
//
// # Memory
//
// The Memory interface loads and saves per-thread state. Every committed
// graph begins with a memory load step and ends with a memory save step.
//
// # Observability
//
// Observer receives run and step lifecycle callbacks. LoggingObserver,
// BasicMetrics, EventRecorder and TracingObserver are ready-made
// implementations; CompositeObserver fans out to several of them.
// Observers never affect control flow.
package api

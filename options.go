package stepgraph

import (
	"log/slog"

	"github.com/petrijr/stepgraph/pkg/api"
)

// Option configures a workflow at construction time.
type Option func(*settings)

type settings struct {
	trigger       *api.Schema
	memory        api.Memory
	threadKey     string
	maxIterations int
	policy        api.ParallelPolicy
	observers     []api.Observer
	logger        *slog.Logger
}

func defaultSettings() settings {
	return settings{
		threadKey:     api.DefaultThreadKey,
		maxIterations: api.DefaultMaxIterations,
		policy:        api.FailFast,
		logger:        slog.Default(),
	}
}

// WithTriggerSchema sets the contract trigger data must satisfy before any
// step runs.
func WithTriggerSchema(s *Schema) Option {
	return func(o *settings) { o.trigger = s }
}

// WithMemory sets the store used by the memory load and save steps.
// Without it each committed workflow gets its own in-memory store.
func WithMemory(m Memory) Option {
	return func(o *settings) { o.memory = m }
}

// WithThreadKey sets the trigger field the thread id is read from.
func WithThreadKey(key string) Option {
	return func(o *settings) {
		if key != "" {
			o.threadKey = key
		}
	}
}

// WithMaxIterations sets the default iteration cap of Until and While nodes.
// Pass Unbounded to disable it for every loop in the workflow. Values below
// Unbounded make Commit fail.
func WithMaxIterations(n int) Option {
	return func(o *settings) {
		if n != 0 {
			o.maxIterations = n
		}
	}
}

// WithParallelPolicy sets the default failure policy of parallel groups.
func WithParallelPolicy(p ParallelPolicy) Option {
	return func(o *settings) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithObserver adds an observer notified of run and step lifecycle events.
func WithObserver(obs Observer) Option {
	return func(o *settings) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger adds a LoggingObserver writing to logger. The memory steps
// also report values they could not save to it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *settings) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		o.observers = append(o.observers, api.NewLoggingObserver(logger))
	}
}

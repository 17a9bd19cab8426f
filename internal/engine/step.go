package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/stepgraph/pkg/api"
)

// runStep executes one step: input resolution and contract, the body with
// its declared retry policy, then the output contract. The outcome is
// recorded in rc. Loop nodes pass replace so that re-executions overwrite
// the step's previous entry.
func (e *Executor) runStep(ctx context.Context, run api.RunInfo, step api.StepDefinition, rc *api.RunContext, replace bool) error {
	// A member of a cancelled parallel group that never started leaves no result.
	if err := ctx.Err(); err != nil {
		return err
	}

	prior := 0
	if replace {
		if res, ok := rc.Result(step.ID); ok {
			prior = res.Attempts
		}
	}

	res := api.StepResult{
		StepID:    step.ID,
		StartedAt: time.Now(),
		Attempts:  prior,
	}

	output, err := e.invoke(ctx, run, step, rc, &res)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		res.Status = api.StepErrored
		res.Err = err
	} else {
		res.Status = api.StepSucceeded
		res.Output = output
	}

	if replace {
		rc.Replace(res)
	} else if recErr := rc.Record(res); recErr != nil {
		return recErr
	}
	return err
}

func (e *Executor) invoke(ctx context.Context, run api.RunInfo, step api.StepDefinition, rc *api.RunContext, res *api.StepResult) (any, error) {
	input, err := resolveInput(step, rc)
	if err != nil {
		return nil, err
	}
	if err := step.Input.Validate(input); err != nil {
		return nil, contractFailure(err, step.ID, api.DirectionInput)
	}

	// Determine max attempts for this step.
	maxAttempts := 1
	var (
		backoff    time.Duration // current backoff value
		maxBackoff time.Duration
		multiplier float64
	)

	if step.Retry != nil {
		if step.Retry.MaxAttempts > 0 {
			maxAttempts = step.Retry.MaxAttempts
		}
		backoff = step.Retry.InitialBackoff
		maxBackoff = step.Retry.MaxBackoff

		// Backoff multiplier:
		//   - If explicitly set to > 0, use it.
		//   - Otherwise default to 2.0 (standard exponential backoff).
		multiplier = step.Retry.BackoffMultiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil && attempt > 1 {
			return nil, &api.StepError{StepID: step.ID, Err: err}
		}

		res.Attempts++
		sc := &api.StepContext{
			RunContext: rc,
			StepID:     step.ID,
			Input:      input,
			Attempt:    res.Attempts,
		}

		started := time.Now()
		e.observer.OnStepStart(ctx, run, step.ID, sc.Attempt)

		out, err := safeExecute(ctx, step, sc)

		if err == nil {
			if verr := step.Output.Validate(out); verr != nil {
				// A contract violation is a property of the body, not a
				// transient failure: it is never retried.
				cerr := contractFailure(verr, step.ID, api.DirectionOutput)
				e.observer.OnStepCompleted(ctx, run, step.ID, sc.Attempt, cerr, time.Since(started))
				return nil, cerr
			}
			e.observer.OnStepCompleted(ctx, run, step.ID, sc.Attempt, nil, time.Since(started))
			return out, nil
		}

		e.observer.OnStepCompleted(ctx, run, step.ID, sc.Attempt, err, time.Since(started))
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		// Wait before next attempt, if backoff is configured.
		if backoff > 0 {
			// Apply per-attempt delay with optional cap.
			delay := backoff
			if maxBackoff > 0 && delay > maxBackoff {
				delay = maxBackoff
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			case <-timer.C:
				// continue to next attempt
			}

			// Increase backoff for the next retry.
			nextBackoff := time.Duration(float64(backoff) * multiplier)
			if maxBackoff > 0 && nextBackoff > maxBackoff {
				backoff = maxBackoff
			} else {
				backoff = nextBackoff
			}
		}
	}

	return nil, lastErr
}

// safeExecute calls the step body wrapped in a recover() block so that a
// panicking step fails the run instead of crashing the process.
func safeExecute(ctx context.Context, step api.StepDefinition, sc *api.StepContext) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &api.StepError{StepID: step.ID, Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()

	out, err = step.Fn(ctx, sc)
	if err != nil {
		return nil, &api.StepError{StepID: step.ID, Err: err}
	}
	return out, nil
}

func resolveInput(step api.StepDefinition, rc *api.RunContext) (any, error) {
	if step.InputFrom == "" {
		return rc.TriggerData(), nil
	}
	out, err := rc.Output(step.InputFrom)
	if err != nil {
		return nil, &api.StepError{StepID: step.ID, Err: fmt.Errorf("input from %q: %w", step.InputFrom, err)}
	}
	return out, nil
}

func contractFailure(err error, stepID string, dir api.Direction) error {
	var ce *api.ContractError
	if errors.As(err, &ce) {
		ce.StepID = stepID
		ce.Direction = dir
		return ce
	}
	return err
}

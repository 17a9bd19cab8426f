package stepgraph

import "time"

// RetryBuilder assembles the retry policy of a step. It is a value type:
// every method returns a new builder, so a base policy can be shared.
//
//	flaky := stepgraph.Retry(4).WithExponentialBackoff(50*time.Millisecond, 2, time.Second)
//
//	fetch := stepgraph.NewStep("fetch", fetchFn, stepgraph.WithRetry(flaky))
//	store := flaky.WithConstantBackoff(10 * time.Millisecond).Apply(storeStep)
//
// A step without a policy is invoked once. Contract violations are never
// retried, whatever the policy says.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry starts a policy allowing attempts invocations of the step body,
// the first one included. Values below 1 mean a single attempt.
// Without a backoff option the attempts follow each other immediately.
func Retry(attempts int) RetryBuilder {
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: max(attempts, 1)}}
}

// WithExponentialBackoff waits initial before the second attempt and grows
// the delay by factor after each failure, up to limit. A factor <= 0 means 2;
// a limit <= 0 leaves the delay uncapped.
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, factor float64, limit time.Duration) RetryBuilder {
	if factor <= 0 {
		factor = 2
	}
	r.policy.InitialBackoff = initial
	r.policy.BackoffMultiplier = factor
	r.policy.MaxBackoff = limit
	return r
}

// WithConstantBackoff waits delay between attempts.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	r.policy.InitialBackoff = delay
	r.policy.BackoffMultiplier = 1
	r.policy.MaxBackoff = 0
	return r
}

// Immediate drops any backoff: a failed attempt is followed by the next one
// straight away. The attempt count is kept.
func (r RetryBuilder) Immediate() RetryBuilder {
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: r.policy.MaxAttempts}}
}

// Policy returns the built policy, for WithRetryPolicy or a Step literal.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}

// Apply returns a copy of s carrying the built policy. s itself is not
// changed.
func (r RetryBuilder) Apply(s Step) Step {
	p := r.policy
	s.Retry = &p
	return s
}

package job

import "context"

// Attempt describes the current execution of a job.
type Attempt struct {
	JobID  int64
	Number int
	Max    int
}

// Final reports whether a failure now exhausts the job's retries.
func (a Attempt) Final() bool {
	return a.Max > 0 && a.Number >= a.Max
}

type attemptKey struct{}

// WithAttempt returns a context carrying a. The worker sets it for every job.
func WithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFromContext returns the attempt set by the worker, if any.
func AttemptFromContext(ctx context.Context) (Attempt, bool) {
	a, ok := ctx.Value(attemptKey{}).(Attempt)
	return a, ok
}

package id

import "context"

type runIDKey struct{}

// WithRunID returns a context carrying the run ID of the current job
// execution.
func WithRunID(ctx context.Context, runID RunID) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID carried by ctx, or the nil ID
// when the context does not originate from a job execution.
func RunIDFromContext(ctx context.Context) RunID {
	runID, _ := ctx.Value(runIDKey{}).(RunID)
	return runID
}

// Package middleware provides composable middleware for job execution.
//
// A [Middleware] is a function that wraps a job handler. Middleware are
// composed into a chain using [Chain] and applied before each job
// executes. They are applied right-to-left: the first middleware in the
// slice is the outermost wrapper.
//
//	// recover → logging → handler
//	chain := middleware.Chain(middleware.Recover(logger), middleware.Logging(logger))
//
// Built-in middleware:
//
//   - [Logging] — logs identity, kind, duration, and outcome per run
//   - [Recover] — catches handler panics and converts them to errors
package middleware

import (
	"context"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

// Handler is the terminal function that executes job logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the job being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, sj *bifrost.ScheduledJob, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(recover, logging) executes as:
//
//	recover → logging → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, sj *bifrost.ScheduledJob, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, sj, prev)
			}
		}
		return h(ctx)
	}
}

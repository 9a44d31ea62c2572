package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so a panicking handler never takes down the dispatcher that ran it.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, sj *bifrost.ScheduledJob, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("job", sj.Job.Identity()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in job %s: %v", sj.Job.Identity(), r)
			}
		}()
		return next(ctx)
	}
}

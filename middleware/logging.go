package middleware

import (
	"context"
	"log/slog"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/id"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, sj *bifrost.ScheduledJob, next Handler) error {
		runID := id.RunIDFromContext(ctx)
		logger.Info("job started",
			slog.String("job", sj.Job.Identity()),
			slog.String("kind", string(sj.Job.Kind())),
			slog.String("run_id", runID.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job", sj.Job.Identity()),
				slog.String("run_id", runID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job", sj.Job.Identity()),
				slog.String("run_id", runID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}

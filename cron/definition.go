package cron

import "context"

// Definition is a recurring task: a name, a cron expression, and the
// callback to invoke each time the expression fires.
type Definition struct {
	// Name identifies the entry in logs. Must be unique within a
	// Scheduler.
	Name string

	// Schedule is a six-field cron expression with a leading seconds
	// column (e.g. "0 28,58 * * * *"), or an @every descriptor.
	Schedule string

	// Run is invoked on every fire. The context is cancelled when the
	// scheduler gives up waiting for runs during shutdown.
	Run func(ctx context.Context) error
}

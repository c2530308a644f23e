package port

import (
	"context"
	"time"
)

type Job func(ctx context.Context)

type Task interface {
	Cancel()
	Canceled() bool
}

type Scheduler interface {
	// ScheduleAfter registers a one-shot job due after delay.
	ScheduleAfter(delay time.Duration, job Job) Task
}

package queue

import (
	"errors"
	"time"
)

// ErrSkipped marks jobs that never started because the context ended.
var ErrSkipped = errors.New("queue: job skipped, context done before start")

// QueueConfig sizes a Pool.
type QueueConfig struct {
	Workers    int           // concurrent jobs
	RetryLimit int           // extra attempts after a failed run
	RetryDelay time.Duration // pause between attempts
}

// Result is the outcome of one job. Results are returned in submission
// order regardless of completion order.
type Result[T any] struct {
	Index    int
	Name     string
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// Skipped reports whether the job was never run.
func (r Result[T]) Skipped() bool {
	return errors.Is(r.Err, ErrSkipped)
}

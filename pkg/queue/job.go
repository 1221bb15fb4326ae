package queue

import "context"

// Job is one unit of work for a Pool.
type Job[T any] interface {
	// Name identifies the job in results and logs.
	Name() string
	Run(ctx context.Context) (T, error)
}

// JobFunc adapts a closure to Job.
type JobFunc[T any] struct {
	ID string
	Fn func(ctx context.Context) (T, error)
}

func (j JobFunc[T]) Name() string { return j.ID }

func (j JobFunc[T]) Run(ctx context.Context) (T, error) { return j.Fn(ctx) }

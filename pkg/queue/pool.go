package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool runs a batch of jobs on a fixed number of goroutines. A failing or
// panicking job only affects its own Result.
type Pool[T any] struct {
	cfg QueueConfig
}

func NewPool[T any](cfg QueueConfig) *Pool[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}
	return &Pool[T]{cfg: cfg}
}

func (p *Pool[T]) Workers() int {
	return p.cfg.Workers
}

// Run blocks until every job has a result. Once ctx is done, jobs that
// have not started are reported with ErrSkipped; running jobs receive the
// cancelled ctx and finish on their own.
func (p *Pool[T]) Run(ctx context.Context, jobs []Job[T]) []Result[T] {
	results := make([]Result[T], len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers && w < len(jobs); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.runOne(ctx, i, jobs[i])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(jobs); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case indexes <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	for i := next; i < len(jobs); i++ {
		results[i] = Result[T]{Index: i, Name: jobs[i].Name(), Err: ErrSkipped}
	}
	return results
}

func (p *Pool[T]) runOne(ctx context.Context, idx int, job Job[T]) Result[T] {
	res := Result[T]{Index: idx, Name: job.Name()}
	start := time.Now()

	for attempt := 0; attempt <= p.cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.cfg.RetryDelay):
			case <-ctx.Done():
				res.Duration = time.Since(start)
				return res
			}
		}
		res.Attempts++
		res.Value, res.Err = safeRun(ctx, job)
		if res.Err == nil {
			break
		}
	}
	res.Duration = time.Since(start)
	return res
}

func safeRun[T any](ctx context.Context, job Job[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

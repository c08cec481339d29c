package worker

import (
	"context"
	"sync"
	"time"
)

// #region pool
// Task is a unit of work executed by a Pool.
type Task[T any] func(ctx context.Context) T

// Pool bounds how many tasks run at once.
type Pool struct {
	workers int
	timeout time.Duration
}

// NewPool creates a pool with the given number of workers. Each task runs
// under its own deadline when timeout is positive.
func NewPool(workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers, timeout: timeout}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes tasks on p and returns their results in submission order.
// Every task is executed, even after ctx is cancelled, so that each slot is
// filled; tasks are expected to return promptly on a done context.
func Run[T any](ctx context.Context, p *Pool, tasks []Task[T]) []T {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	jobs := make(chan int, p.workers*2)
	var wg sync.WaitGroup

	n := p.workers
	if n > len(tasks) {
		n = len(tasks)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = runTask(ctx, p.timeout, tasks[idx])
			}
		}()
	}

	for i := range tasks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func runTask[T any](ctx context.Context, timeout time.Duration, task Task[T]) T {
	if timeout <= 0 {
		return task(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return task(tctx)
}

// #endregion pool

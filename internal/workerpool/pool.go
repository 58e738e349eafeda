package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Package workerpool runs CPU-bound tasks over a fixed set of workers.
// Failure is isolated per task: a panic or error inside a task becomes a
// failed TaskResult and never crashes the pool.

// Status classifies a task outcome.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusFailed
)

// TaskResult carries one task's outcome back to the caller in input order.
type TaskResult[R any] struct {
	Index  int
	Value  R
	Status Status
	Err    error
}

// Task computes a result for one job. Returning ok=false marks the result
// empty without treating it as a failure.
type Task[J, R any] func(ctx context.Context, job J) (value R, ok bool, err error)

// Map evaluates every job on workers parallel workers and returns results
// indexed by job position. A non-positive worker count defaults to the
// number of CPUs.
func Map[J, R any](ctx context.Context, jobs []J, workers int, task Task[J, R]) []TaskResult[R] {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]TaskResult[R], len(jobs))
	jobQueue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobQueue {
				results[idx] = runTask(ctx, idx, jobs[idx], task)
			}
		}()
	}

	for idx := range jobs {
		select {
		case jobQueue <- idx:
		case <-ctx.Done():
			// Stop feeding the queue; jobs never dispatched fail with
			// the context error.
			close(jobQueue)
			wg.Wait()
			for i := idx; i < len(jobs); i++ {
				results[i] = TaskResult[R]{Index: i, Status: StatusFailed, Err: ctx.Err()}
			}
			return results
		}
	}
	close(jobQueue)
	wg.Wait()
	return results
}

// runTask executes one task, converting panics into failed results.
func runTask[J, R any](ctx context.Context, idx int, job J, task Task[J, R]) (res TaskResult[R]) {
	res.Index = idx
	defer func() {
		if r := recover(); r != nil {
			var zero R
			res.Value = zero
			res.Status = StatusFailed
			res.Err = fmt.Errorf("task %d panicked: %v", idx, r)
		}
	}()
	value, ok, err := task(ctx, job)
	res.Value = value
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Err = err
	case !ok:
		res.Status = StatusEmpty
	default:
		res.Status = StatusOK
	}
	return res
}

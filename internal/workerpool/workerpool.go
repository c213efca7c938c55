// Package workerpool runs a bounded number of worker goroutines over a
// sequence of tasks submitted one at a time, yielding results either in
// completion order or in submission order.
package workerpool

import (
	"context"
	"runtime"
)

// Task is a unit of work submitted to the pool. It should respect ctx
// cancellation for long-running work.
type Task[T any] func(ctx context.Context) (T, error)

// Result pairs a task's outcome with the index it was submitted at, so
// ordered callers can tell which task produced it even when results arrive
// out of order internally.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Map runs tasks across numWorkers goroutines (runtime.NumCPU() when
// numWorkers <= 0) and streams results back over the returned channel. When
// ordered is true, results are delivered in the same order tasks arrived
// from the seq iterator, buffering ahead-of-order completions in memory;
// when false, results are delivered as soon as each task finishes.
//
// The returned channel is closed once every task has completed or ctx is
// canceled. Callers that stop draining the channel early must cancel ctx to
// let worker goroutines exit.
func Map[T any](ctx context.Context, seq func(yield func(Task[T]) bool), numWorkers int, ordered bool) <-chan Result[T] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	taskChan := make(chan indexedTask[T], numWorkers)
	rawResults := make(chan Result[T], numWorkers)
	out := make(chan Result[T], numWorkers)

	// admit bounds the number of tasks in flight (submitted but not yet
	// delivered via out) to numWorkers, the same bound lazy_map keeps by only
	// scheduling a replacement task once a result is yielded.
	admit := make(chan struct{}, numWorkers)

	go func() {
		defer close(taskChan)
		i := 0
		seq(func(t Task[T]) bool {
			select {
			case admit <- struct{}{}:
			case <-ctx.Done():
				return false
			}
			select {
			case taskChan <- indexedTask[T]{index: i, task: t}:
				i++
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	done := make(chan struct{})
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for it := range taskChan {
				v, err := it.task(ctx)
				select {
				case rawResults <- Result[T]{Index: it.index, Value: v, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		for w := 0; w < numWorkers; w++ {
			<-done
		}
		close(rawResults)
	}()

	if !ordered {
		go func() {
			defer close(out)
			for r := range rawResults {
				out <- r
				<-admit
			}
		}()
		return out
	}

	go func() {
		defer close(out)
		pending := make(map[int]Result[T])
		next := 0
		for r := range rawResults {
			pending[r.Index] = r
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				out <- ready
				<-admit
				delete(pending, next)
				next++
			}
		}
	}()
	return out
}

type indexedTask[T any] struct {
	index int
	task  Task[T]
}

// Package parallel provides the worker pool the executor uses to evaluate
// independent row ranges concurrently.
//
// Results are returned in input order regardless of worker interleaving, so
// parallel execution is bit-for-bit identical to sequential execution. The
// pool activates only above a configurable row threshold; small frames run
// on the caller's goroutine.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool manages a bounded set of goroutines for fan-out/fan-in work.
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a pool with the given worker count; zero or
// negative means runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{numWorkers: numWorkers, ctx: ctx, cancel: cancel}
}

// NumWorkers returns the pool's goroutine count.
func (wp *WorkerPool) NumWorkers() int { return wp.numWorkers }

// Close shuts down the pool. In-flight items finish; queued items are
// dropped.
func (wp *WorkerPool) Close() { wp.cancel() }

type indexedItem[T any] struct {
	index int
	value T
}

type indexedResult[R any] struct {
	index  int
	result R
	err    error
}

// ProcessIndexed executes worker over every item and returns results in
// item order. The first error cancels remaining work and is returned after
// in-flight items drain.
func ProcessIndexed[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) == 1 || wp.numWorkers == 1 {
		results := make([]R, len(items))
		for i, item := range items {
			r, err := worker(i, item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	ctx, cancel := context.WithCancel(wp.ctx)
	defer cancel()

	itemCh := make(chan indexedItem[T], len(items))
	resultCh := make(chan indexedResult[R], len(items))

	var wg sync.WaitGroup
	for i := 0; i < wp.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r, err := worker(item.index, item.value)
				resultCh <- indexedResult[R]{index: item.index, result: r, err: err}
				if err != nil {
					cancel()
					return
				}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case itemCh <- indexedItem[T]{index: i, value: item}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, len(items))
	var firstErr error
	for result := range resultCh {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		results[result.index] = result.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Process executes worker over every item without a defined result order.
func Process[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(T) (R, error),
) ([]R, error) {
	return ProcessIndexed(wp, items, func(_ int, item T) (R, error) {
		return worker(item)
	})
}

// RowRange is a half-open row interval [Start, End).
type RowRange struct {
	Start int
	End   int
}

// SplitRows divides length rows into at most parts contiguous ranges of
// near-equal size, in row order.
func SplitRows(length, parts int) []RowRange {
	if length <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > length {
		parts = length
	}
	ranges := make([]RowRange, 0, parts)
	base := length / parts
	extra := length % parts
	start := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < extra {
			size++
		}
		ranges = append(ranges, RowRange{Start: start, End: start + size})
		start += size
	}
	return ranges
}

// Package coordinator fans work out across a bounded pool of goroutines,
// joining with a WaitGroup and accumulating per-item failures instead of
// aborting the whole batch.
package coordinator

import (
	"context"
	"sync"
)

// Result is one item's outcome from a fan-out batch.
type Result[T any] struct {
	Index int
	Item  T
	Err   error
}

// Run executes fn for every item in items with at most maxParallel
// concurrent goroutines, returning one Result per item in input order.
// A single item's error never stops the rest of the batch; callers decide
// what to do with failures (accumulate into FailedItems, log, etc).
// Run returns early with whatever results are already gathered if ctx is
// cancelled mid-batch.
func Run[T any](ctx context.Context, items []T, maxParallel int, fn func(ctx context.Context, item T) error) []Result[T] {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	results := make([]Result[T], len(items))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case <-ctx.Done():
			results[i] = Result[T]{Index: i, Item: item, Err: ctx.Err()}
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = Result[T]{Index: i, Item: item, Err: fn(ctx, item)}
		}(i, item)
	}

	wg.Wait()
	return results
}

package coordinator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sullysaurus/venues/internal/coordinator"
)

func TestRunCollectsAllResultsInOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := coordinator.Run(context.Background(), items, 2, func(ctx context.Context, item int) error {
		if item == 3 {
			return errors.New("boom")
		}
		return nil
	})

	assert.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, items[i], r.Item)
		if items[i] == 3 {
			assert.Error(t, r.Err)
		} else {
			assert.NoError(t, r.Err)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var current, max int64
	items := make([]int, 20)
	coordinator.Run(context.Background(), items, 3, func(ctx context.Context, item int) error {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&max)
			if n <= old || atomic.CompareAndSwapInt64(&max, old, n) {
				break
			}
		}
		atomic.AddInt64(&current, -1)
		return nil
	})
	assert.LessOrEqual(t, max, int64(3))
}

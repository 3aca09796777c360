package retrypolicy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sullysaurus/venues/internal/errkind"
	"github.com/sullysaurus/venues/internal/retrypolicy"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := retrypolicy.Do(context.Background(), retrypolicy.Fast, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errkind.New(errkind.Transient, "test", "boom", errors.New("boom"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := retrypolicy.Do(context.Background(), retrypolicy.Fast, func(ctx context.Context) error {
		attempts++
		return errkind.New(errkind.NonRetryable, "test", "bad input", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := retrypolicy.Do(context.Background(), retrypolicy.Policy{
		Name: "tiny", MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1,
	}, func(ctx context.Context) error {
		attempts++
		return errkind.New(errkind.Transient, "test", "still failing", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retrypolicy.Do(ctx, retrypolicy.Policy{
		Name: "slow", MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1,
	}, func(ctx context.Context) error {
		return errkind.New(errkind.Transient, "test", "retry me", nil)
	})
	require.Error(t, err)
}

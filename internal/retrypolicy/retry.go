// Package retrypolicy implements exponential backoff with jitter for the
// three named retry policies the pipeline's stages use.
package retrypolicy

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sullysaurus/venues/internal/errkind"
)

// Policy defines retry behavior: attempt cap, initial/max delay, and the
// multiplier applied between attempts.
type Policy struct {
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// Fast is used for cheap, local operations (seat generation, artifact
// puts): short delays, few attempts.
var Fast = Policy{
	Name:         "fast",
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2.0,
	Jitter:       true,
}

// Blender is used for the model-build and depth-rendering compute calls:
// longer delays, moderate attempt count, tolerant of slow cold starts.
var Blender = Policy{
	Name:         "blender",
	MaxAttempts:  3,
	InitialDelay: 5 * time.Second,
	MaxDelay:     2 * time.Minute,
	Multiplier:   2.0,
	Jitter:       true,
}

// AI is used for image-synthesis calls, which can hit provider rate
// limits: the most attempts and the longest delays of the three policies.
var AI = Policy{
	Name:         "ai",
	MaxAttempts:  5,
	InitialDelay: 10 * time.Second,
	MaxDelay:     5 * time.Minute,
	Multiplier:   2.0,
	Jitter:       true,
}

// Do runs fn, retrying according to p until it succeeds, exhausts its
// attempt budget, the context is cancelled, or fn returns a non-retryable
// error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(p, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !errkind.Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
	}

	return fmt.Errorf("%s policy: max attempts (%d) exhausted: %w", p.Name, p.MaxAttempts, lastErr)
}

func backoff(p Policy, attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		jitterAmount := delay * 0.3
		delay += (rand.Float64()*2 - 1) * jitterAmount
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

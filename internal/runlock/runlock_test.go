package runlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryLockSerializesSameVenue(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.TryLock("venue-1"))
	assert.False(t, r.TryLock("venue-1"))

	r.Unlock("venue-1")
	assert.True(t, r.TryLock("venue-1"))
}

func TestTryLockIndependentPerVenue(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.TryLock("venue-1"))
	assert.True(t, r.TryLock("venue-2"))
}

func TestUnlockUnknownVenueIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Unlock("never-locked") })
}

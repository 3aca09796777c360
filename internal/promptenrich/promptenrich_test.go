package promptenrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sullysaurus/venues/internal/errkind"
)

func TestEnrichWithoutAPIKeyFallsBackToOriginalPrompt(t *testing.T) {
	e := New("")

	prompt, err := e.Enrich(context.Background(), "view from section 12 row C", "")
	assert.Error(t, err)
	assert.Equal(t, errkind.NonRetryable, errkind.KindOf(err))
	assert.Equal(t, "view from section 12 row C", prompt)
}

func TestEnrichWithOverrideKeyReturnsOriginalPromptOnFailure(t *testing.T) {
	e := New("default-key")
	// Which key is sent cannot be observed here; this checks that a failed
	// completion call (no reachable API, or a rejected key) returns the
	// original prompt alongside the error rather than panicking.
	prompt, err := e.Enrich(context.Background(), "aerial view", "override-key")
	assert.Error(t, err)
	assert.Equal(t, "aerial view", prompt)
}

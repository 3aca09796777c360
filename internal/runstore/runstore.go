// Package runstore persists the durable run_id -> progress checkpoint so
// a run survives an orchestrator process restart, not just a single
// process's lifetime.
package runstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/sullysaurus/venues/internal/domain"
)

// Store is the registry interface the orchestrator depends on.
type Store interface {
	Save(ctx context.Context, run *domain.Run) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	GetByVenue(ctx context.Context, venueID string) (*domain.Run, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

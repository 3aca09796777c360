package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sullysaurus/venues/internal/domain"
)

// MemoryStore is the default registry backend: no Postgres configured,
// runs live for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*domain.Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[uuid.UUID]*domain.Run)}
}

func (s *MemoryStore) Save(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryStore) GetByVenue(ctx context.Context, venueID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.VenueID == venueID && !run.Progress.Stage.Terminal() {
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}

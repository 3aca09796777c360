package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/sullysaurus/venues/internal/domain"
)

// BunStore persists runs to Postgres via bun, so a run's progress
// checkpoint survives an orchestrator process restart.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

func (s *BunStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*runModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *BunStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *BunStore) Close() error                   { return s.db.Close() }

type runModel struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID        uuid.UUID         `bun:"id,pk"`
	VenueID   string            `bun:"venue_id"`
	Input     domain.InputSnapshot    `bun:"input,type:jsonb"`
	Progress  domain.ProgressSnapshot `bun:"progress,type:jsonb"`
	CreatedAt time.Time         `bun:"created_at"`
}

func toModel(r *domain.Run) *runModel {
	return &runModel{
		ID:        r.ID,
		VenueID:   r.VenueID,
		Input:     r.Input,
		Progress:  r.Progress,
		CreatedAt: r.CreatedAt,
	}
}

func (m *runModel) toDomain() *domain.Run {
	return &domain.Run{
		ID:        m.ID,
		VenueID:   m.VenueID,
		Input:     m.Input,
		Progress:  m.Progress,
		CreatedAt: m.CreatedAt,
	}
}

func (s *BunStore) Save(ctx context.Context, run *domain.Run) error {
	model := toModel(run)
	_, err := s.db.NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

func (s *BunStore) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	model := new(runModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return model.toDomain(), nil
}

func (s *BunStore) GetByVenue(ctx context.Context, venueID string) (*domain.Run, error) {
	var models []runModel
	err := s.db.NewSelect().Model(&models).
		Where("venue_id = ?", venueID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if !m.Progress.Stage.Terminal() {
			run := m.toDomain()
			return run, nil
		}
	}
	return nil, nil
}

func (s *BunStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.NewDelete().Model((*runModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

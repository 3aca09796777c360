// Package progress holds the single mutex-protected progress snapshot for
// a run. Query is wait-free: it never blocks on in-flight stage work, it
// only ever contends briefly with another snapshot update.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sullysaurus/venues/internal/domain"
)

// Tracker owns one run's progress snapshot.
type Tracker struct {
	mu       sync.Mutex
	snapshot domain.ProgressSnapshot
}

func New(runID uuid.UUID, venueID string) *Tracker {
	now := time.Now()
	return &Tracker{
		snapshot: domain.ProgressSnapshot{
			RunID:      runID,
			VenueID:    venueID,
			Stage:      domain.StagePending,
			TotalSteps: domain.TotalSteps,
			Message:    "pending",
			StartedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// Query returns a copy of the current snapshot; safe to call from any
// goroutine at any time.
func (t *Tracker) Query() domain.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := t.snapshot
	cp.FailedItems = append([]string(nil), t.snapshot.FailedItems...)
	return cp
}

// SetStage advances the run to a new stage, deriving current_step and
// message alongside it.
func (t *Tracker) SetStage(stage domain.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Stage = stage
	t.snapshot.CurrentStep = stage.StepNumber()
	t.snapshot.Message = stageMessage(stage)
	t.snapshot.UpdatedAt = time.Now()
}

func stageMessage(stage domain.Stage) string {
	switch stage {
	case domain.StageGeneratingSeats:
		return "generating seat geometry"
	case domain.StageBuildingModel:
		return "building venue model"
	case domain.StageRenderingDepths:
		return "rendering depth maps"
	case domain.StageGeneratingImages:
		return "synthesizing seat-view images"
	case domain.StageCompleted:
		return "completed"
	case domain.StageFailed:
		return "failed"
	case domain.StageCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// SetCurrentItem records the item (typically a seat id) currently being
// worked on, for query-time visibility into long-running batches.
func (t *Tracker) SetCurrentItem(item string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.CurrentItem = item
	t.snapshot.UpdatedAt = time.Now()
}

// SetSeatsGenerated records the seats_generated counter once seat
// generation produces its output.
func (t *Tracker) SetSeatsGenerated(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.SeatsGenerated = n
	t.snapshot.UpdatedAt = time.Now()
}

// AddDepthMapsRendered bumps depth_maps_rendered by a completed batch's
// persisted count.
func (t *Tracker) AddDepthMapsRendered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.DepthMapsRendered += n
	t.snapshot.UpdatedAt = time.Now()
}

// AddImagesGenerated bumps images_generated by a completed batch's
// success count.
func (t *Tracker) AddImagesGenerated(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.ImagesGenerated += n
	t.snapshot.UpdatedAt = time.Now()
}

// AddFailedSeat records one seat that exhausted retry, without failing
// the run.
func (t *Tracker) AddFailedSeat(seatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.FailedItems = append(t.snapshot.FailedItems, seatID)
	t.snapshot.UpdatedAt = time.Now()
}

// AddCost accumulates cost into the named operation's subtotal and the
// running total.
func (t *Tracker) AddCost(op string, amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch op {
	case "seats":
		t.snapshot.CostBreakdown.Seats += amount
	case "model_build":
		t.snapshot.CostBreakdown.ModelBuild += amount
	case "depth_rendering":
		t.snapshot.CostBreakdown.DepthRendering += amount
	case "image_generation":
		t.snapshot.CostBreakdown.ImageGeneration += amount
	}
	t.snapshot.TotalCost += amount
	t.snapshot.UpdatedAt = time.Now()
}

// Fail marks the run as failed with the given error message.
func (t *Tracker) Fail(errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Stage = domain.StageFailed
	t.snapshot.Error = errMsg
	t.snapshot.Message = "failed"
	t.snapshot.UpdatedAt = time.Now()
}

// Cancel marks the run as cancelled.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Stage = domain.StageCancelled
	t.snapshot.Message = "cancelled"
	t.snapshot.UpdatedAt = time.Now()
}

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sullysaurus/venues/internal/artifactstore"
	"github.com/sullysaurus/venues/internal/computeclient"
	"github.com/sullysaurus/venues/internal/domain"
	"github.com/sullysaurus/venues/internal/runstore"
)

type fakeCompute struct{}

func (fakeCompute) BuildModel(ctx context.Context, venueID string, surface domain.SurfaceConfig, sections []domain.SectionDef) ([]byte, []byte, float64, error) {
	return []byte("blend"), []byte("preview"), 1.0, nil
}

func (fakeCompute) RenderDepths(ctx context.Context, venueID string, seats []computeclient.ModelSeat) (map[string][]byte, float64, error) {
	out := make(map[string][]byte, len(seats))
	for _, s := range seats {
		out[s.ID] = []byte("depth-" + s.ID)
	}
	return out, 0.5, nil
}

func (fakeCompute) SynthesizeImage(ctx context.Context, venueID, seatID string, depthMap []byte, prompt, model string, strength float64, referenceImage []byte, ipAdapterScale float64) ([]byte, float64, error) {
	return []byte("image-" + seatID), 0.1, nil
}

func testInput(venueID string) domain.InputSnapshot {
	return domain.InputSnapshot{
		VenueID: venueID,
		Sections: []domain.SectionDef{
			{SectionID: "S1", Tier: "lower", Angle: 30, InnerRadius: 15, Rows: 3, RowDepth: 1.1, RowRise: 0.4, BaseHeight: 2},
		},
		Surface: domain.SurfaceConfig{Kind: domain.SurfaceRink, Dimensions: map[string]float64{"length": 60, "width": 30}},
		AI:      domain.AIParams{Model: "test-model", Prompt: "a view"},
	}
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	store := artifactstore.New(nil, artifactstore.NewLocalDisk(t.TempDir()))
	runs := runstore.NewMemoryStore()
	return New(store, fakeCompute{}, runs, nil, 4)
}

func TestStartRunsToCompletion(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	runID, err := o.Start(ctx, testInput("venue-1"))
	require.NoError(t, err)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		snap, err = o.Query(ctx, runID)
		require.NoError(t, err)
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, domain.StageCompleted, snap.Stage)
	assert.Greater(t, snap.SeatsGenerated, 0)
	assert.Greater(t, snap.DepthMapsRendered, 0)
	assert.Equal(t, snap.DepthMapsRendered, snap.ImagesGenerated)
	assert.Greater(t, snap.TotalCost, 0.0)
	assert.Empty(t, snap.FailedItems)

	result, err := o.Result(ctx, runID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ImagePaths)
	assert.Equal(t, snap.DepthMapsRendered, result.DepthMapsRendered)
	assert.Equal(t, snap.ImagesGenerated, result.ImagesGenerated)
}

func TestStartRejectsConcurrentRunsOnSameVenue(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.Start(ctx, testInput("venue-2"))
	require.NoError(t, err)

	_, err = o.Start(ctx, testInput("venue-2"))
	assert.Error(t, err)
}

func TestCancelAcceptsRunningRun(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	runID, err := o.Start(ctx, testInput("venue-3"))
	require.NoError(t, err)

	err = o.Cancel(runID)
	assert.NoError(t, err)
}

func TestQueryUnknownRunIsNotFound(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Query(context.Background(), domain.NewID())
	assert.Error(t, err)
}

func TestStopAfterModelSkipsDepthsAndImages(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	input := testInput("venue-stop-model")
	input.StopAfterModel = true

	runID, err := o.Start(ctx, input)
	require.NoError(t, err)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		snap, err = o.Query(ctx, runID)
		require.NoError(t, err)
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, domain.StageCompleted, snap.Stage)
	assert.Equal(t, 0, snap.DepthMapsRendered)
	assert.Equal(t, 0, snap.ImagesGenerated)
}

func TestStopAfterDepthsSkipsImages(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	input := testInput("venue-stop-depths")
	input.StopAfterDepths = true

	runID, err := o.Start(ctx, input)
	require.NoError(t, err)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		snap, err = o.Query(ctx, runID)
		require.NoError(t, err)
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, domain.StageCompleted, snap.Stage)
	assert.Greater(t, snap.DepthMapsRendered, 0)
	assert.Equal(t, 0, snap.ImagesGenerated)
}

func TestSkipAIGenerationSkipsImages(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	input := testInput("venue-skip-ai")
	input.SkipAIGeneration = true

	runID, err := o.Start(ctx, input)
	require.NoError(t, err)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		snap, err = o.Query(ctx, runID)
		require.NoError(t, err)
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, domain.StageCompleted, snap.Stage)
	assert.Greater(t, snap.DepthMapsRendered, 0)
	assert.Equal(t, 0, snap.ImagesGenerated)
}

func TestDepthBatchSizeSplitsIntoMultipleBatches(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	input := domain.InputSnapshot{
		VenueID: "venue-batching",
		Sections: []domain.SectionDef{
			{SectionID: "S1", Tier: "lower", Angle: 30, InnerRadius: 15, Rows: 2, RowDepth: 1.1, RowRise: 0.4, BaseHeight: 2},
			{SectionID: "S2", Tier: "lower", Angle: 30, InnerRadius: 15, Rows: 2, RowDepth: 1.1, RowRise: 0.4, BaseHeight: 2},
			{SectionID: "S3", Tier: "lower", Angle: 30, InnerRadius: 15, Rows: 2, RowDepth: 1.1, RowRise: 0.4, BaseHeight: 2},
		},
		Surface:         domain.SurfaceConfig{Kind: domain.SurfaceRink, Dimensions: map[string]float64{"length": 60, "width": 30}},
		AI:              domain.AIParams{Model: "test-model", Prompt: "a view"},
		StopAfterDepths: true,
		DepthBatchSize:  2,
	}

	runID, err := o.Start(ctx, input)
	require.NoError(t, err)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		snap, err = o.Query(ctx, runID)
		require.NoError(t, err)
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, domain.StageCompleted, snap.Stage)
	assert.Equal(t, 6, snap.DepthMapsRendered)
}

func TestSelectedSectionIDsAndCustomSeatsFilterRenderSet(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	input := domain.InputSnapshot{
		VenueID: "venue-filtered",
		Sections: []domain.SectionDef{
			{SectionID: "S1", Tier: "lower", Angle: 30, InnerRadius: 15, Rows: 2, RowDepth: 1.1, RowRise: 0.4, BaseHeight: 2},
			{SectionID: "S2", Tier: "lower", Angle: 30, InnerRadius: 15, Rows: 2, RowDepth: 1.1, RowRise: 0.4, BaseHeight: 2},
		},
		Surface:            domain.SurfaceConfig{Kind: domain.SurfaceRink, Dimensions: map[string]float64{"length": 60, "width": 30}},
		AI:                 domain.AIParams{Model: "test-model", Prompt: "a view"},
		SelectedSectionIDs: []string{"S1"},
		CustomSeats:        []string{"S1_Front_1"},
	}

	runID, err := o.Start(ctx, input)
	require.NoError(t, err)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		snap, err = o.Query(ctx, runID)
		require.NoError(t, err)
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, domain.StageCompleted, snap.Stage)
	assert.Equal(t, 1, snap.DepthMapsRendered)
	assert.Equal(t, 1, snap.ImagesGenerated)
}

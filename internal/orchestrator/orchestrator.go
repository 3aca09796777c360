// Package orchestrator runs the fixed four-stage venue pipeline:
// PENDING -> GENERATING_SEATS -> BUILDING_MODEL -> RENDERING_DEPTHS ->
// GENERATING_IMAGES -> COMPLETED, with forward-only transitions, partial
// resumability via the artifact store, and bounded-parallel image
// synthesis.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sullysaurus/venues/internal/artifactstore"
	"github.com/sullysaurus/venues/internal/circuitbreaker"
	"github.com/sullysaurus/venues/internal/computeclient"
	"github.com/sullysaurus/venues/internal/coordinator"
	"github.com/sullysaurus/venues/internal/domain"
	"github.com/sullysaurus/venues/internal/errkind"
	"github.com/sullysaurus/venues/internal/geometry"
	"github.com/sullysaurus/venues/internal/progress"
	"github.com/sullysaurus/venues/internal/promptenrich"
	"github.com/sullysaurus/venues/internal/resume"
	"github.com/sullysaurus/venues/internal/retrypolicy"
	"github.com/sullysaurus/venues/internal/runlock"
	"github.com/sullysaurus/venues/internal/runstore"
)

// Orchestrator owns every in-flight run's goroutine, progress tracker,
// and cancellation handle.
type Orchestrator struct {
	store    *artifactstore.Store
	probe    *resume.Probe
	compute  computeclient.Client
	runs     runstore.Store
	locks    *runlock.Registry
	enricher *promptenrich.Enricher
	breakers *circuitbreaker.Registry

	maxParallelSeats int

	mu       sync.Mutex
	trackers map[uuid.UUID]*progress.Tracker
	cancels  map[uuid.UUID]context.CancelFunc
}

// New builds an Orchestrator. enricher may be nil to disable prompt
// enrichment regardless of per-run input.
func New(store *artifactstore.Store, compute computeclient.Client, runs runstore.Store, enricher *promptenrich.Enricher, maxParallelSeats int) *Orchestrator {
	return &Orchestrator{
		store:            store,
		probe:            resume.New(store),
		compute:          compute,
		runs:             runs,
		locks:            runlock.NewRegistry(),
		enricher:         enricher,
		breakers:         circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()),
		maxParallelSeats: maxParallelSeats,
		trackers:         make(map[uuid.UUID]*progress.Tracker),
		cancels:          make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates the venue isn't already running, registers the run, and
// launches its stages in a background goroutine. It returns immediately
// with the new run's ID.
func (o *Orchestrator) Start(ctx context.Context, input domain.InputSnapshot) (uuid.UUID, error) {
	if !o.locks.TryLock(input.VenueID) {
		return uuid.Nil, errkind.New(errkind.Invalid, "start", fmt.Sprintf("venue %s already has a run in progress", input.VenueID), nil)
	}

	runID := domain.NewID()
	tracker := progress.New(runID, input.VenueID)
	run := &domain.Run{
		ID:        runID,
		VenueID:   input.VenueID,
		Input:     input,
		Progress:  tracker.Query(),
		CreatedAt: time.Now(),
	}
	if err := o.runs.Save(ctx, run); err != nil {
		o.locks.Unlock(input.VenueID)
		return uuid.Nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.trackers[runID] = tracker
	o.cancels[runID] = cancel
	o.mu.Unlock()

	go o.execute(runCtx, runID, input, tracker)

	return runID, nil
}

// Query returns the current progress snapshot for a run. It checks the
// in-memory tracker first (for runs this process started) and falls back
// to the run registry (for a run started by a prior process instance).
func (o *Orchestrator) Query(ctx context.Context, runID uuid.UUID) (domain.ProgressSnapshot, error) {
	o.mu.Lock()
	tracker, ok := o.trackers[runID]
	o.mu.Unlock()
	if ok {
		return tracker.Query(), nil
	}

	run, err := o.runs.Get(ctx, runID)
	if err != nil {
		return domain.ProgressSnapshot{}, errkind.New(errkind.NotFound, "query", "run not found", err)
	}
	return run.Progress, nil
}

// Result assembles the read-once final outcome for a terminal run. It
// returns errkind.Invalid if the run hasn't reached a terminal stage yet.
func (o *Orchestrator) Result(ctx context.Context, runID uuid.UUID) (domain.PipelineResult, error) {
	snap, err := o.Query(ctx, runID)
	if err != nil {
		return domain.PipelineResult{}, err
	}
	if !snap.Stage.Terminal() {
		return domain.PipelineResult{}, errkind.New(errkind.Invalid, "result", "run has not finished", nil)
	}

	run, err := o.runs.Get(ctx, runID)
	if err != nil {
		return domain.PipelineResult{}, errkind.New(errkind.NotFound, "result", "run not found", err)
	}

	allSeats, err := o.probe.LoadSeats(ctx, run.VenueID)
	if err != nil {
		allSeats = nil
	}

	imagePaths, _ := o.store.List(ctx, run.VenueID+"/final_images/")

	return domain.PipelineResult{
		RunID:             runID,
		VenueID:           run.VenueID,
		Success:           snap.Stage == domain.StageCompleted,
		AllSeatsCount:     len(allSeats),
		DepthMapsRendered: snap.DepthMapsRendered,
		ImagesGenerated:   snap.ImagesGenerated,
		ImagePaths:        imagePaths,
		FailedSeats:       snap.FailedItems,
		TotalCost:         snap.TotalCost,
		DurationSeconds:   snap.UpdatedAt.Sub(snap.StartedAt).Seconds(),
		ErrorMessage:      snap.Error,
	}, nil
}

// Cancel requests that a running pipeline stop at its next checkpoint.
func (o *Orchestrator) Cancel(runID uuid.UUID) error {
	o.mu.Lock()
	cancel, ok := o.cancels[runID]
	o.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, "cancel", "run not found or already finished", nil)
	}
	cancel()
	return nil
}

func (o *Orchestrator) finish(runID uuid.UUID, venueID string, tracker *progress.Tracker) {
	o.mu.Lock()
	delete(o.trackers, runID)
	delete(o.cancels, runID)
	o.mu.Unlock()
	o.locks.Unlock(venueID)

	run := &domain.Run{
		ID:       runID,
		VenueID:  venueID,
		Progress: tracker.Query(),
	}
	if err := o.runs.Save(context.Background(), run); err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("failed to persist final run state")
	}
}

func (o *Orchestrator) execute(ctx context.Context, runID uuid.UUID, input domain.InputSnapshot, tracker *progress.Tracker) {
	defer o.finish(runID, input.VenueID, tracker)
	logger := log.With().Str("run_id", runID.String()).Str("venue_id", input.VenueID).Logger()

	allSeats, anchorSeats, err := o.stageGenerateSeats(ctx, logger, input, tracker)
	if err != nil {
		o.fail(ctx, tracker, err)
		return
	}
	if ctx.Err() != nil {
		tracker.Cancel()
		return
	}
	tracker.SetSeatsGenerated(len(allSeats))

	renderSet := resolveRenderSet(allSeats, anchorSeats, input.CustomSeats)

	if err := o.stageBuildModel(ctx, logger, input, tracker); err != nil {
		o.fail(ctx, tracker, err)
		return
	}
	if ctx.Err() != nil {
		tracker.Cancel()
		return
	}
	if input.StopAfterModel {
		tracker.SetStage(domain.StageCompleted)
		return
	}

	if err := o.stageRenderDepths(ctx, logger, input, renderSet, tracker); err != nil {
		o.fail(ctx, tracker, err)
		return
	}
	if ctx.Err() != nil {
		tracker.Cancel()
		return
	}
	if input.StopAfterDepths || input.SkipAIGeneration {
		tracker.SetStage(domain.StageCompleted)
		return
	}

	o.stageGenerateImages(ctx, logger, input, renderSet, tracker)
	if ctx.Err() != nil {
		tracker.Cancel()
		return
	}

	tracker.SetStage(domain.StageCompleted)
}

func (o *Orchestrator) fail(ctx context.Context, tracker *progress.Tracker, err error) {
	if ctx.Err() != nil {
		tracker.Cancel()
		return
	}
	tracker.Fail(err.Error())
}

// resolveRenderSet computes seats_to_render: customSeats resolved
// against allSeats when given, else the default anchorSeats subset.
func resolveRenderSet(allSeats, anchorSeats []geometry.Seat, customSeats []string) []geometry.Seat {
	if len(customSeats) == 0 {
		return anchorSeats
	}
	want := make(map[string]struct{}, len(customSeats))
	for _, id := range customSeats {
		want[id] = struct{}{}
	}
	out := make([]geometry.Seat, 0, len(customSeats))
	for _, s := range allSeats {
		if _, ok := want[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// --- Stage 1: seat generation (pure, local) ---

func (o *Orchestrator) stageGenerateSeats(ctx context.Context, logger zerolog.Logger, input domain.InputSnapshot, tracker *progress.Tracker) ([]geometry.Seat, []geometry.Seat, error) {
	tracker.SetStage(domain.StageGeneratingSeats)

	if o.probe.SeatsCached(ctx, input.VenueID) {
		logger.Debug().Msg("seats already generated, reusing cached artifact")
		all, err := o.probe.LoadSeats(ctx, input.VenueID)
		if err != nil {
			return nil, nil, err
		}
		return all, geometry.AnchorSeats(all), nil
	}

	filtered := input.FilteredSections()
	sections := make([]geometry.Section, 0, len(filtered))
	for _, s := range filtered {
		sections = append(sections, geometry.Section{
			SectionID:   s.SectionID,
			Tier:        s.Tier,
			Angle:       s.Angle,
			InnerRadius: s.InnerRadius,
			Rows:        s.Rows,
			RowDepth:    s.RowDepth,
			RowRise:     s.RowRise,
			BaseHeight:  s.BaseHeight,
		})
	}

	all := geometry.GenerateAll(sections)
	anchors := geometry.AnchorSeats(all)

	payload, err := json.Marshal(struct {
		Venue string          `json:"venue"`
		Seats []geometry.Seat `json:"seats"`
	}{input.VenueID, all})
	if err != nil {
		return nil, nil, errkind.New(errkind.NonRetryable, "generate_seats", "failed to encode seats", err)
	}

	anchorPayload, err := json.Marshal(anchors)
	if err != nil {
		return nil, nil, errkind.New(errkind.NonRetryable, "generate_seats", "failed to encode anchor seats", err)
	}

	err = retrypolicy.Do(ctx, retrypolicy.Fast, func(ctx context.Context) error {
		if err := o.store.Put(ctx, input.VenueID+"/seats.json", payload); err != nil {
			return errkind.New(errkind.Transient, "generate_seats", "failed to persist seats", err)
		}
		if err := o.store.Put(ctx, input.VenueID+"/anchor_seats.json", anchorPayload); err != nil {
			return errkind.New(errkind.Transient, "generate_seats", "failed to persist anchor seats", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return all, anchors, nil
}

// --- Stage 2: model build (remote compute, cacheable by content hash) ---

func (o *Orchestrator) stageBuildModel(ctx context.Context, logger zerolog.Logger, input domain.InputSnapshot, tracker *progress.Tracker) error {
	tracker.SetStage(domain.StageBuildingModel)

	filtered := input.FilteredSections()
	hash := resume.ModelContentHash(input.Surface, filtered)

	if input.SkipModelBuild && o.probe.ModelCacheValid(ctx, input.VenueID, hash) {
		logger.Debug().Msg("model cache hit, skipping build")
		return nil
	}

	breaker := o.breakers.Get("build_model")
	var blend, preview []byte
	var cost float64

	err := retrypolicy.Do(ctx, retrypolicy.Blender, func(ctx context.Context) error {
		return breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			blend, preview, cost, err = o.compute.BuildModel(ctx, input.VenueID, input.Surface, filtered)
			return err
		})
	})
	if err != nil {
		return err
	}

	if err := o.store.Put(ctx, input.VenueID+"/venue_model.blend", blend); err != nil {
		return errkind.New(errkind.Transient, "build_model", "failed to persist blend file", err)
	}
	if len(preview) > 0 {
		if err := o.store.Put(ctx, input.VenueID+"/preview.png", preview); err != nil {
			logger.Warn().Err(err).Msg("failed to persist preview image, continuing")
		}
	}
	if err := o.store.Put(ctx, input.VenueID+"/model.hash", []byte(hash)); err != nil {
		logger.Warn().Err(err).Msg("failed to persist model hash, cache validation next run may miss")
	}

	tracker.AddCost("model_build", cost)
	return nil
}

// --- Stage 3: depth rendering (batched remote calls) ---

func (o *Orchestrator) stageRenderDepths(ctx context.Context, logger zerolog.Logger, input domain.InputSnapshot, seats []geometry.Seat, tracker *progress.Tracker) error {
	tracker.SetStage(domain.StageRenderingDepths)

	missing := seats
	if input.SkipDepthRender {
		missing = o.probe.MissingDepths(ctx, input.VenueID, seats)
	}
	if len(missing) == 0 {
		return nil
	}

	breaker := o.breakers.Get("render_depths")
	batchSize := input.DepthBatchSizeOrDefault()

	for start := 0; start < len(missing); start += batchSize {
		if ctx.Err() != nil {
			return nil
		}

		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		modelSeats := make([]computeclient.ModelSeat, len(batch))
		for i, s := range batch {
			modelSeats[i] = computeclient.ModelSeat{ID: s.ID, X: s.X, Y: s.Y, Z: s.Z, LookAngle: s.LookAngle}
		}

		var depths map[string][]byte
		var cost float64
		err := retrypolicy.Do(ctx, retrypolicy.Blender, func(ctx context.Context) error {
			return breaker.Execute(ctx, func(ctx context.Context) error {
				var err error
				depths, cost, err = o.compute.RenderDepths(ctx, input.VenueID, modelSeats)
				return err
			})
		})
		if err != nil {
			return err
		}
		tracker.AddCost("depth_rendering", cost)

		rendered := 0
		for seatID, data := range depths {
			key := fmt.Sprintf("%s/depth_maps/%s_depth.png", input.VenueID, seatID)
			if err := o.store.Put(ctx, key, data); err != nil {
				logger.Warn().Err(err).Str("seat_id", seatID).Msg("failed to persist depth map")
				continue
			}
			rendered++
		}
		tracker.AddDepthMapsRendered(rendered)
	}
	return nil
}

// --- Stage 4: image generation (bounded-parallel fan-out) ---

func (o *Orchestrator) stageGenerateImages(ctx context.Context, logger zerolog.Logger, input domain.InputSnapshot, seats []geometry.Seat, tracker *progress.Tracker) {
	tracker.SetStage(domain.StageGeneratingImages)

	prompt := input.AI.Prompt
	if input.AI.EnrichPrompt && o.enricher != nil {
		if expanded, err := o.enricher.Enrich(ctx, prompt, input.AI.OpenAIAPIKey); err != nil {
			logger.Warn().Err(err).Msg("prompt enrichment failed, falling back to original prompt")
		} else {
			prompt = expanded
		}
	}

	missing := o.probe.MissingImages(ctx, input.VenueID, seats)

	breaker := o.breakers.Get("synthesize_image")
	maxParallel := input.ParallelImageBatchSizeOrDefault()
	if o.maxParallelSeats > 0 && maxParallel > o.maxParallelSeats {
		maxParallel = o.maxParallelSeats
	}
	results := coordinator.Run(ctx, missing, maxParallel, func(ctx context.Context, seat geometry.Seat) error {
		tracker.SetCurrentItem(seat.ID)

		depth, err := o.store.Get(ctx, fmt.Sprintf("%s/depth_maps/%s_depth.png", input.VenueID, seat.ID))
		if err != nil {
			return errkind.New(errkind.NonRetryable, "synthesize_image", "missing depth map for seat "+seat.ID, err)
		}

		var image []byte
		var cost float64
		err = retrypolicy.Do(ctx, retrypolicy.AI, func(ctx context.Context) error {
			return breaker.Execute(ctx, func(ctx context.Context) error {
				var err error
				image, cost, err = o.compute.SynthesizeImage(ctx, input.VenueID, seat.ID, depth, prompt, input.AI.Model, input.AI.Strength, input.AI.ReferenceImage, input.AI.IPAdapterScale)
				return err
			})
		})
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%s/final_images/%s_final.jpg", input.VenueID, seat.ID)
		if err := o.store.Put(ctx, key, image); err != nil {
			return errkind.New(errkind.Transient, "synthesize_image", "failed to persist image", err)
		}

		tracker.AddCost("image_generation", cost)
		return nil
	})

	generated := 0
	for _, r := range results {
		if r.Err != nil {
			tracker.AddFailedSeat(r.Item.ID)
			logger.Warn().Err(r.Err).Str("seat_id", r.Item.ID).Msg("image synthesis failed, continuing")
			continue
		}
		generated++
	}
	tracker.AddImagesGenerated(generated)
}

// Package domain defines the core entities of a venue seat-view pipeline
// run: the input snapshot, the stage state machine, progress, and results.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one step of the fixed pipeline state machine. Stages only move
// forward; SkipXxx/StopAfterXxx input flags may cause a stage to be
// bypassed or the run to terminate early, but a stage is never revisited.
type Stage string

const (
	StagePending          Stage = "PENDING"
	StageGeneratingSeats  Stage = "GENERATING_SEATS"
	StageBuildingModel    Stage = "BUILDING_MODEL"
	StageRenderingDepths  Stage = "RENDERING_DEPTHS"
	StageGeneratingImages Stage = "GENERATING_IMAGES"
	StageCompleted        Stage = "COMPLETED"
	StageFailed           Stage = "FAILED"
	StageCancelled        Stage = "CANCELLED"
)

// Terminal reports whether a stage is one of the run's terminal states.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageCancelled:
		return true
	default:
		return false
	}
}

// stageOrder lists the forward-only progression that Index reports
// positions in.
var stageOrder = []Stage{
	StagePending,
	StageGeneratingSeats,
	StageBuildingModel,
	StageRenderingDepths,
	StageGeneratingImages,
	StageCompleted,
}

// Index returns the stage's position in the forward progression, or -1 for
// terminal failure/cancellation states which sit outside the happy path.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// TotalSteps is the fixed number of stages a run reports progress against.
const TotalSteps = 4

// StepNumber maps a stage to its 1-4 position for progress reporting.
// Pending and the failure/cancellation terminals fall outside the range.
func (s Stage) StepNumber() int {
	switch s {
	case StageGeneratingSeats:
		return 1
	case StageBuildingModel:
		return 2
	case StageRenderingDepths:
		return 3
	case StageGeneratingImages, StageCompleted:
		return 4
	default:
		return 0
	}
}

// Surface kinds a venue's playing/performance area can be.
const (
	SurfaceRink  = "rink"
	SurfaceCourt = "court"
	SurfaceStage = "stage"
	SurfaceField = "field"
)

// SurfaceConfig describes the surface a venue's sections look onto: its
// kind and whatever dimensions/attributes that kind needs for model
// building (ice sheet length/width for a rink, baseline/sideline for a
// court, apron depth for a stage, and so on). Row geometry belongs to
// each SectionDef individually, not here.
type SurfaceConfig struct {
	Kind       string             `json:"kind"`
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
}

// SectionDef is one input section definition, the raw material seat
// geometry is generated from, including its own row spacing: different
// sections (floor vs. upper deck, say) commonly have different row
// depth, rise, and base height.
type SectionDef struct {
	SectionID   string  `json:"section_id"`
	Tier        string  `json:"tier"`
	Angle       float64 `json:"angle"`
	InnerRadius float64 `json:"inner_radius"`
	Rows        int     `json:"rows"`
	RowDepth    float64 `json:"row_depth"`
	RowRise     float64 `json:"row_rise"`
	BaseHeight  float64 `json:"base_height"`
}

// AIParams configures the image-synthesis backend: the prompt/model
// pair, generation strength, optional reference image for IP-Adapter
// conditioning, and optional prompt enrichment.
type AIParams struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	Strength       float64 `json:"strength"`
	ReferenceImage []byte  `json:"reference_image,omitempty"`
	IPAdapterScale float64 `json:"ip_adapter_scale"`
	EnrichPrompt   bool    `json:"enrich_prompt"`
	OpenAIAPIKey   string  `json:"openai_api_key,omitempty"`
}

// Default batch sizes applied whenever an input leaves the corresponding
// field unset (zero).
const (
	DefaultDepthBatchSize         = 10
	DefaultParallelImageBatchSize = 5
)

// InputSnapshot is the immutable request that started a run: everything
// the pipeline needs to reproduce its work deterministically.
type InputSnapshot struct {
	VenueID  string       `json:"venue_id"`
	Sections []SectionDef `json:"sections"`

	// SelectedSectionIDs restricts seat generation and model building to
	// a subset of Sections; empty means every section.
	SelectedSectionIDs []string `json:"selected_section_ids,omitempty"`
	// CustomSeats overrides the default anchor-seat sampling: when set,
	// it is resolved against all_seats to produce seats_to_render.
	CustomSeats []string `json:"custom_seats,omitempty"`

	Surface SurfaceConfig `json:"surface_config"`
	AI      AIParams      `json:"ai_params"`

	SkipModelBuild   bool `json:"skip_model_build"`
	SkipDepthRender  bool `json:"skip_depth_render"`
	SkipAIGeneration bool `json:"skip_ai_generation"`
	StopAfterModel   bool `json:"stop_after_model"`
	StopAfterDepths  bool `json:"stop_after_depths"`

	DepthBatchSize         int `json:"depth_batch_size"`
	ParallelImageBatchSize int `json:"parallel_image_batch_size"`
}

// FilteredSections returns the sections SelectedSectionIDs restricts work
// to, preserving input order, or every section when the filter is empty.
func (in InputSnapshot) FilteredSections() []SectionDef {
	if len(in.SelectedSectionIDs) == 0 {
		return in.Sections
	}
	want := make(map[string]struct{}, len(in.SelectedSectionIDs))
	for _, id := range in.SelectedSectionIDs {
		want[id] = struct{}{}
	}
	out := make([]SectionDef, 0, len(in.Sections))
	for _, s := range in.Sections {
		if _, ok := want[s.SectionID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// DepthBatchSizeOrDefault returns DepthBatchSize, or the spec default
// when it is left unset.
func (in InputSnapshot) DepthBatchSizeOrDefault() int {
	if in.DepthBatchSize <= 0 {
		return DefaultDepthBatchSize
	}
	return in.DepthBatchSize
}

// ParallelImageBatchSizeOrDefault returns ParallelImageBatchSize, or the
// spec default when it is left unset.
func (in InputSnapshot) ParallelImageBatchSizeOrDefault() int {
	if in.ParallelImageBatchSize <= 0 {
		return DefaultParallelImageBatchSize
	}
	return in.ParallelImageBatchSize
}

// CostBreakdown holds per-operation running cost subtotals, supplementing
// the run's single total_cost figure.
type CostBreakdown struct {
	Seats           float64 `json:"seats"`
	ModelBuild      float64 `json:"model_build"`
	DepthRendering  float64 `json:"depth_rendering"`
	ImageGeneration float64 `json:"image_generation"`
}

func (c *CostBreakdown) Total() float64 {
	return c.Seats + c.ModelBuild + c.DepthRendering + c.ImageGeneration
}

// ProgressSnapshot is the wait-free, point-in-time view of a run's
// progress. Query callers get a copy; no one blocks on it.
type ProgressSnapshot struct {
	RunID   uuid.UUID `json:"run_id"`
	VenueID string    `json:"venue_id"`
	Stage   Stage     `json:"stage"`

	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
	Message     string `json:"message"`
	CurrentItem string `json:"current_item,omitempty"`

	// Monotonic non-decreasing counters while the run is non-terminal.
	SeatsGenerated    int `json:"seats_generated"`
	DepthMapsRendered int `json:"depth_maps_rendered"`
	ImagesGenerated   int `json:"images_generated"`

	// FailedItems is the append-only set of seat ids that exhausted retry.
	FailedItems []string `json:"failed_items"`

	TotalCost     float64       `json:"total_cost"`
	CostBreakdown CostBreakdown `json:"cost_breakdown"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// PipelineResult is the final, read-once outcome of a completed run,
// matching the external GET /pipelines/{run_id}/result contract.
type PipelineResult struct {
	RunID   uuid.UUID `json:"run_id"`
	VenueID string    `json:"venue_id"`
	Success bool      `json:"success"`

	AllSeatsCount     int `json:"all_seats_count"`
	DepthMapsRendered int `json:"depth_maps_rendered"`
	ImagesGenerated   int `json:"images_generated"`

	ImagePaths  []string `json:"image_paths"`
	FailedSeats []string `json:"failed_seats"`

	TotalCost       float64 `json:"total_cost"`
	DurationSeconds float64 `json:"duration_seconds"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// Run is the durable record the run registry persists: identity, input,
// and the latest progress snapshot.
type Run struct {
	ID        uuid.UUID        `json:"run_id"`
	VenueID   string           `json:"venue_id"`
	Input     InputSnapshot    `json:"input"`
	Progress  ProgressSnapshot `json:"progress"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewID generates a fresh run identifier.
func NewID() uuid.UUID {
	return uuid.New()
}

// Package resume implements the resume probe: before doing stage work,
// check the artifact store for cached output and skip what is already
// there, rebuilding only what is missing or stale.
package resume

import (
	"context"
	"hash/fnv"
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/sullysaurus/venues/internal/artifactstore"
	"github.com/sullysaurus/venues/internal/domain"
	"github.com/sullysaurus/venues/internal/geometry"
)

// Probe checks artifact-store state ahead of each stage so resumed runs
// reuse prior work instead of redoing it.
type Probe struct {
	store *artifactstore.Store
}

func New(store *artifactstore.Store) *Probe {
	return &Probe{store: store}
}

func seatsKey(venueID string) string  { return venueID + "/seats.json" }
func anchorsKey(venueID string) string { return venueID + "/anchor_seats.json" }
func blendKey(venueID string) string  { return venueID + "/venue_model.blend" }
func blendHashKey(venueID string) string { return venueID + "/model.hash" }
func depthKey(venueID, seatID string) string {
	return fmt.Sprintf("%s/depth_maps/%s_depth.png", venueID, seatID)
}
func imageKey(venueID, seatID string) string {
	return fmt.Sprintf("%s/final_images/%s_final.jpg", venueID, seatID)
}

// SeatsCached reports whether seat generation's output artifact already
// exists for this venue.
func (p *Probe) SeatsCached(ctx context.Context, venueID string) bool {
	ok, _ := p.store.Exists(ctx, seatsKey(venueID))
	return ok
}

// LoadSeats reads back a previously generated seat set.
func (p *Probe) LoadSeats(ctx context.Context, venueID string) ([]geometry.Seat, error) {
	data, err := p.store.Get(ctx, seatsKey(venueID))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Seats []geometry.Seat `json:"seats"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload.Seats, nil
}

// ModelContentHash hashes the inputs that determine the built model's
// geometry, so a cached .blend can be validated rather than blindly
// trusted (decision: resolves the "stale model cache" open question).
func ModelContentHash(surface domain.SurfaceConfig, sections []domain.SectionDef) string {
	data, _ := json.Marshal(struct {
		Surface  domain.SurfaceConfig `json:"surface_config"`
		Sections []domain.SectionDef  `json:"sections"`
	}{surface, sections})

	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum64())
}

// ModelCacheValid reports whether a cached model.blend matches the
// current input's content hash.
func (p *Probe) ModelCacheValid(ctx context.Context, venueID, currentHash string) bool {
	exists, err := p.store.Exists(ctx, blendKey(venueID))
	if err != nil || !exists {
		return false
	}
	stored, err := p.store.Get(ctx, blendHashKey(venueID))
	if err != nil {
		return false
	}
	return string(stored) == currentHash
}

// MissingDepths filters seats down to those without a cached depth map.
// Partial cache is honored: only the missing subset is returned, per the
// skip_depth_render open-question decision.
func (p *Probe) MissingDepths(ctx context.Context, venueID string, seats []geometry.Seat) []geometry.Seat {
	var missing []geometry.Seat
	for _, s := range seats {
		ok, _ := p.store.Exists(ctx, depthKey(venueID, s.ID))
		if !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// MissingImages filters seats down to those without a cached rendered
// image.
func (p *Probe) MissingImages(ctx context.Context, venueID string, seats []geometry.Seat) []geometry.Seat {
	var missing []geometry.Seat
	for _, s := range seats {
		ok, _ := p.store.Exists(ctx, imageKey(venueID, s.ID))
		if !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// SkipPredicate compiles and evaluates a user-supplied skip condition
// (e.g. "Tier == 'floor'", using geometry.Seat's Go field names) against a seat, letting callers express ad-hoc
// exclusion rules without a code change. Compile errors make the
// predicate permissive (never skip) rather than fail the run.
func SkipPredicate(expression string) func(seat geometry.Seat) bool {
	if expression == "" {
		return func(geometry.Seat) bool { return false }
	}
	program, err := expr.Compile(expression, expr.Env(geometry.Seat{}), expr.AsBool())
	if err != nil {
		return func(geometry.Seat) bool { return false }
	}
	return func(seat geometry.Seat) bool {
		out, err := expr.Run(program, seat)
		if err != nil {
			return false
		}
		skip, _ := out.(bool)
		return skip
	}
}

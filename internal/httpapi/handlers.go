package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sullysaurus/venues/internal/domain"
	"github.com/sullysaurus/venues/internal/errkind"
)

type startRequest struct {
	VenueID            string               `json:"venue_id"`
	Sections           []domain.SectionDef  `json:"sections"`
	SelectedSectionIDs []string             `json:"selected_section_ids"`
	CustomSeats        []string             `json:"custom_seats"`
	Surface            domain.SurfaceConfig `json:"surface_config"`
	AI                 domain.AIParams      `json:"ai_params"`

	SkipModelBuild   bool `json:"skip_model_build"`
	SkipDepthRender  bool `json:"skip_depth_render"`
	SkipAIGeneration bool `json:"skip_ai_generation"`
	StopAfterModel   bool `json:"stop_after_model"`
	StopAfterDepths  bool `json:"stop_after_depths"`

	DepthBatchSize         int `json:"depth_batch_size"`
	ParallelImageBatchSize int `json:"parallel_image_batch_size"`
}

type startResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VenueID == "" {
		writeError(w, http.StatusBadRequest, "venue_id is required")
		return
	}
	if len(req.Sections) == 0 {
		writeError(w, http.StatusBadRequest, "at least one section is required")
		return
	}

	input := domain.InputSnapshot{
		VenueID:                req.VenueID,
		Sections:               req.Sections,
		SelectedSectionIDs:     req.SelectedSectionIDs,
		CustomSeats:            req.CustomSeats,
		Surface:                req.Surface,
		AI:                     req.AI,
		SkipModelBuild:         req.SkipModelBuild,
		SkipDepthRender:        req.SkipDepthRender,
		SkipAIGeneration:       req.SkipAIGeneration,
		StopAfterModel:         req.StopAfterModel,
		StopAfterDepths:        req.StopAfterDepths,
		DepthBatchSize:         req.DepthBatchSize,
		ParallelImageBatchSize: req.ParallelImageBatchSize,
	}

	runID, err := s.orch.Start(r.Context(), input)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startResponse{RunID: runID.String(), Status: "started"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}

	snap, err := s.orch.Query(r.Context(), runID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}

	result, err := s.orch.Result(r.Context(), runID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}

	if err := s.orch.Cancel(runID); err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("run_id"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	var ke *errkind.Error
	if errkind.As(err, &ke) {
		switch ke.Kind {
		case errkind.NotFound:
			writeError(w, http.StatusNotFound, ke.Message)
			return
		case errkind.Invalid:
			writeError(w, http.StatusConflict, ke.Message)
			return
		case errkind.RateLimited:
			writeError(w, http.StatusTooManyRequests, ke.Message)
			return
		}
	}
	s.logger.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

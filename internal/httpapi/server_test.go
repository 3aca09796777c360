package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sullysaurus/venues/internal/artifactstore"
	"github.com/sullysaurus/venues/internal/computeclient"
	"github.com/sullysaurus/venues/internal/domain"
	"github.com/sullysaurus/venues/internal/logx"
	"github.com/sullysaurus/venues/internal/orchestrator"
	"github.com/sullysaurus/venues/internal/runstore"
)

type fakeCompute struct{}

func (fakeCompute) BuildModel(ctx context.Context, venueID string, surface domain.SurfaceConfig, sections []domain.SectionDef) ([]byte, []byte, float64, error) {
	return []byte("blend"), nil, 1.0, nil
}

func (fakeCompute) RenderDepths(ctx context.Context, venueID string, seats []computeclient.ModelSeat) (map[string][]byte, float64, error) {
	out := make(map[string][]byte, len(seats))
	for _, s := range seats {
		out[s.ID] = []byte("depth")
	}
	return out, 0.2, nil
}

func (fakeCompute) SynthesizeImage(ctx context.Context, venueID, seatID string, depthMap []byte, prompt, model string, strength float64, referenceImage []byte, ipAdapterScale float64) ([]byte, float64, error) {
	return []byte("image"), 0.1, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := artifactstore.New(nil, artifactstore.NewLocalDisk(t.TempDir()))
	orch := orchestrator.New(store, fakeCompute{}, runstore.NewMemoryStore(), nil, 4)
	return NewServer(orch, logx.Setup("error", false))
}

func startBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"venue_id": "venue-http-1",
		"sections": []map[string]interface{}{
			{"section_id": "S1", "tier": "lower", "angle": 10, "inner_radius": 12, "rows": 2, "row_depth": 1.1, "row_rise": 0.3, "base_height": 2},
		},
		"surface_config": map[string]interface{}{"kind": "rink", "dimensions": map[string]interface{}{"length": 60, "width": 30}},
		"ai_params":      map[string]interface{}{"model": "m", "prompt": "p"},
	})
	return body
}

func TestHandleStartAndQuery(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader(startBody()))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.RunID)
	assert.Equal(t, "started", started.Status)

	var snap domain.ProgressSnapshot
	for i := 0; i < 200; i++ {
		qreq := httptest.NewRequest(http.MethodGet, "/pipelines/"+started.RunID, nil)
		qrec := httptest.NewRecorder()
		s.ServeHTTP(qrec, qreq)
		require.Equal(t, http.StatusOK, qrec.Code)
		require.NoError(t, json.Unmarshal(qrec.Body.Bytes(), &snap))
		if snap.Stage.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, domain.StageCompleted, snap.Stage)
}

func TestHandleStartRejectsMissingVenueID(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]interface{}{"sections": []map[string]interface{}{{"section_id": "S1"}}})

	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryUnknownRunReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/pipelines/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader(startBody()))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	creq := httptest.NewRequest(http.MethodPost, "/pipelines/"+started.RunID+"/cancel", nil)
	crec := httptest.NewRecorder()
	s.ServeHTTP(crec, creq)
	assert.Equal(t, http.StatusAccepted, crec.Code)

	var cancelled map[string]string
	require.NoError(t, json.Unmarshal(crec.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancel_requested", cancelled["status"])
}

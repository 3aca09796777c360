// Package computeclient wraps the remote compute backend that performs
// model building, depth rendering, and image synthesis. It follows the
// resolve-config -> build-request -> call -> classify-error -> record-metrics
// shape the node executors in the pack use for outbound calls.
package computeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sullysaurus/venues/internal/domain"
	"github.com/sullysaurus/venues/internal/errkind"
)

// Client calls the remote compute backend's three pipeline operations.
type Client interface {
	BuildModel(ctx context.Context, venueID string, surface domain.SurfaceConfig, sections []domain.SectionDef) (blend []byte, previewPNG []byte, cost float64, err error)
	RenderDepths(ctx context.Context, venueID string, seats []ModelSeat) (depths map[string][]byte, cost float64, err error)
	SynthesizeImage(ctx context.Context, venueID string, seatID string, depthMap []byte, prompt, model string, strength float64, referenceImage []byte, ipAdapterScale float64) (image []byte, cost float64, err error)
}

// ModelSeat is the minimal seat shape the depth renderer needs: id plus
// camera pose.
type ModelSeat struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	LookAngle float64 `json:"look_angle"`
}

// HTTPClient is the production Client, talking JSON over HTTP to the
// compute backend.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type buildModelRequest struct {
	VenueID  string               `json:"venue_id"`
	Surface  domain.SurfaceConfig `json:"surface_config"`
	Sections []domain.SectionDef  `json:"sections"`
}

type buildModelResponse struct {
	BlendBase64   string  `json:"blend_base64"`
	PreviewBase64 string  `json:"preview_base64"`
	Cost          float64 `json:"cost"`
}

func (c *HTTPClient) BuildModel(ctx context.Context, venueID string, surface domain.SurfaceConfig, sections []domain.SectionDef) ([]byte, []byte, float64, error) {
	var resp buildModelResponse
	err := c.post(ctx, "/build-model", buildModelRequest{VenueID: venueID, Surface: surface, Sections: sections}, &resp)
	if err != nil {
		return nil, nil, 0, err
	}
	blend, err := decodeB64(resp.BlendBase64)
	if err != nil {
		return nil, nil, 0, errkind.New(errkind.NonRetryable, "build_model", "malformed blend payload", err)
	}
	preview, err := decodeB64(resp.PreviewBase64)
	if err != nil {
		return nil, nil, 0, errkind.New(errkind.NonRetryable, "build_model", "malformed preview payload", err)
	}
	return blend, preview, resp.Cost, nil
}

type renderDepthsRequest struct {
	VenueID string      `json:"venue_id"`
	Seats   []ModelSeat `json:"seats"`
}

type renderDepthsResponse struct {
	DepthsBase64 map[string]string `json:"depths_base64"`
	Cost         float64           `json:"cost"`
}

func (c *HTTPClient) RenderDepths(ctx context.Context, venueID string, seats []ModelSeat) (map[string][]byte, float64, error) {
	var resp renderDepthsResponse
	err := c.post(ctx, "/render-depths", renderDepthsRequest{VenueID: venueID, Seats: seats}, &resp)
	if err != nil {
		return nil, 0, err
	}
	out := make(map[string][]byte, len(resp.DepthsBase64))
	for seatID, b64 := range resp.DepthsBase64 {
		data, err := decodeB64(b64)
		if err != nil {
			return nil, 0, errkind.New(errkind.NonRetryable, "render_depths", fmt.Sprintf("malformed depth map for seat %s", seatID), err)
		}
		out[seatID] = data
	}
	return out, resp.Cost, nil
}

type synthesizeImageRequest struct {
	VenueID               string  `json:"venue_id"`
	SeatID                string  `json:"seat_id"`
	DepthBase64           string  `json:"depth_base64"`
	Prompt                string  `json:"prompt"`
	Model                 string  `json:"model"`
	Strength              float64 `json:"strength"`
	ReferenceImageBase64  string  `json:"reference_image_base64,omitempty"`
	IPAdapterScale        float64 `json:"ip_adapter_scale"`
}

type synthesizeImageResponse struct {
	ImageBase64 string  `json:"image_base64"`
	Cost        float64 `json:"cost"`
}

func (c *HTTPClient) SynthesizeImage(ctx context.Context, venueID, seatID string, depthMap []byte, prompt, model string, strength float64, referenceImage []byte, ipAdapterScale float64) ([]byte, float64, error) {
	var resp synthesizeImageResponse
	req := synthesizeImageRequest{
		VenueID:        venueID,
		SeatID:         seatID,
		DepthBase64:    encodeB64(depthMap),
		Prompt:         prompt,
		Model:          model,
		Strength:       strength,
		IPAdapterScale: ipAdapterScale,
	}
	if len(referenceImage) > 0 {
		req.ReferenceImageBase64 = encodeB64(referenceImage)
	}
	err := c.post(ctx, "/synthesize-image", req, &resp)
	if err != nil {
		return nil, 0, err
	}
	image, err := decodeB64(resp.ImageBase64)
	if err != nil {
		return nil, 0, errkind.New(errkind.NonRetryable, "synthesize_image", "malformed image payload", err)
	}
	return image, resp.Cost, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errkind.New(errkind.NonRetryable, path, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errkind.New(errkind.NonRetryable, path, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		return errkind.New(errkind.Transient, path, "compute backend unreachable", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("latency", latency).Msg("compute backend call")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errkind.New(errkind.RateLimited, path, "compute backend rate limited the request", nil)
	case resp.StatusCode >= 500:
		return errkind.New(errkind.Transient, path, fmt.Sprintf("compute backend returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return errkind.New(errkind.NonRetryable, path, fmt.Sprintf("compute backend rejected request: %d", resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errkind.New(errkind.NonRetryable, path, "failed to decode response", err)
		}
	}
	return nil
}

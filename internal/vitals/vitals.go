// Package vitals provides an HTTP-backed implementation of
// triage.VitalsDetector that calls an image-analysis model server, plus a
// no-op detector for nodes without one.
package vitals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	httpTimeout = 15 * time.Second

	// probabilityThreshold filters detections to high-confidence hits only.
	probabilityThreshold = 0.75
)

// Detector calls an image-analysis endpoint for visible-condition detection.
type Detector struct {
	endpoint string
	client   *http.Client
}

// New creates a detector for the given analysis endpoint.
func New(endpoint string) *Detector {
	return &Detector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

type detectRequest struct {
	ImageRef string `json:"imageRef"`
}

type detectResponse struct {
	Detections []struct {
		Condition   string  `json:"condition"`
		Probability float64 `json:"probability"`
	} `json:"detections"`
}

// Detect submits the image reference for analysis and returns conditions
// detected above the probability threshold, as human-readable notes.
func (d *Detector) Detect(ctx context.Context, imageRef string) (map[string]string, error) {
	body, err := json.Marshal(detectRequest{ImageRef: imageRef})
	if err != nil {
		return nil, fmt.Errorf("vitals: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vitals: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vitals: post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("vitals: analysis returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("vitals: decode response: %w", err)
	}

	detected := make(map[string]string)
	for _, det := range out.Detections {
		if det.Probability > probabilityThreshold {
			detected[det.Condition] = fmt.Sprintf("High Probability detected (%d%%)", int(det.Probability*100))
		}
	}
	return detected, nil
}

// Nop is a detector that always reports nothing.
type Nop struct{}

// Detect implements triage.VitalsDetector.
func (Nop) Detect(_ context.Context, _ string) (map[string]string, error) {
	return nil, nil
}

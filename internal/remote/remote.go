// Package remote is the edge node's client for the central ingestion API:
// bulk assessment sync, emergency escalation, and the connectivity probe
// that gates the sync engine.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/outpost/internal/triage"
)

const (
	syncPath     = "/api/v1/triage/sync"
	escalatePath = "/api/v1/triage/escalate"
	healthPath   = "/-/healthy"

	httpTimeout  = 30 * time.Second
	probeTimeout = 5 * time.Second
)

// Record is one assessment on the sync wire.
type Record struct {
	ID                          string   `json:"id"`
	PatientID                   string   `json:"patientId"`
	RiskLevel                   string   `json:"riskLevel"`
	PrimaryObservation          string   `json:"primaryObservation"`
	Suggestions                 []string `json:"suggestions"`
	RequiresImmediateEscalation bool     `json:"requiresImmediateEscalation"`
	ImageURI                    *string  `json:"imageUri"`
	ConfidenceScore             float64  `json:"confidenceScore"`
	Timestamp                   int64    `json:"timestamp"` // epoch milliseconds
}

// RecordFromAssessment converts a stored assessment to its wire form.
func RecordFromAssessment(a *triage.Assessment) Record {
	return Record{
		ID:                          a.ID,
		PatientID:                   a.PatientID,
		RiskLevel:                   string(a.RiskLevel),
		PrimaryObservation:          a.PrimaryObservation,
		Suggestions:                 a.Suggestions,
		RequiresImmediateEscalation: a.RequiresImmediateEscalation,
		ImageURI:                    a.ImageRef,
		ConfidenceScore:             a.ConfidenceScore,
		Timestamp:                   a.Timestamp.UnixMilli(),
	}
}

// SyncResult is the central system's acknowledgement of a batch.
type SyncResult struct {
	Status   string    `json:"status"`
	SyncedAt time.Time `json:"syncedAt"`
	Count    int       `json:"count"`
}

// EscalationRequest triggers an out-of-band emergency alert.
type EscalationRequest struct {
	PatientID string `json:"patientId"`
	RiskLevel string `json:"riskLevel"`
	Reason    string `json:"reason"`
	Location  string `json:"location"`
}

// EscalationResponse carries the minted escalation identifier.
type EscalationResponse struct {
	Status       string `json:"status"`
	EscalationID string `json:"escalationId"`
	Instruction  string `json:"instruction"`
}

// Client talks to the central ingestion API. All calls carry bounded
// timeouts; a timeout is indistinguishable from a network failure to
// callers, which is exactly how the sync engine treats it.
type Client struct {
	baseURL  string
	location string
	client   *http.Client
	probe    *http.Client
}

// New creates a client for the central API at baseURL. location identifies
// this node in escalation alerts.
func New(baseURL, location string) *Client {
	return &Client{
		baseURL:  baseURL,
		location: location,
		client:   &http.Client{Timeout: httpTimeout},
		probe:    &http.Client{Timeout: probeTimeout},
	}
}

// Sync submits one batch of records. Validation is whole-batch on the
// server: a non-2xx response means nothing in the batch was accepted.
func (c *Client) Sync(ctx context.Context, records []Record) (*SyncResult, error) {
	var out SyncResult
	if err := c.post(ctx, syncPath, records, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Escalate implements triage.Escalator against the central escalation
// endpoint.
func (c *Client) Escalate(ctx context.Context, a *triage.Assessment) error {
	req := EscalationRequest{
		PatientID: a.PatientID,
		RiskLevel: string(a.RiskLevel),
		Reason:    a.PrimaryObservation,
		Location:  c.location,
	}
	var out EscalationResponse
	if err := c.post(ctx, escalatePath, req, &out); err != nil {
		return err
	}
	if out.EscalationID == "" {
		return fmt.Errorf("remote: escalation accepted without an id")
	}
	return nil
}

// Online reports whether the central system is currently reachable. Used as
// the sync engine's connectivity gate; any failure means offline.
func (c *Client) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("remote: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("remote: %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s response: %w", path, err)
	}
	return nil
}

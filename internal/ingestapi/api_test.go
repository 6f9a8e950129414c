package ingestapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/outpost/internal/ingest"
	"github.com/linnemanlabs/outpost/internal/ingest/memstore"
	"github.com/linnemanlabs/outpost/internal/triage"
)

func newTestRouter(t *testing.T) (chi.Router, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := ingest.NewService(store, nil, nil, nil)
	api := New(nil, svc)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, store
}

func validBatch() string {
	return `[{
		"id": "01REC1",
		"patientId": "PT-100",
		"riskLevel": "YELLOW_OBSERVE",
		"primaryObservation": "fever and cough",
		"suggestions": ["Visit PHC within 24 hours"],
		"requiresImmediateEscalation": false,
		"imageUri": null,
		"confidenceScore": 0.85,
		"timestamp": 1756500000000
	}]`
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(log.Nop(), nil)
}

func TestHandleSync(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/sync", strings.NewReader(validBatch()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Status   string    `json:"status"`
		SyncedAt time.Time `json:"syncedAt"`
		Count    int       `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "SUCCESS" || resp.Count != 1 {
		t.Errorf("response = %+v, want SUCCESS count 1", resp)
	}
	if resp.SyncedAt.IsZero() {
		t.Error("syncedAt missing from receipt")
	}

	if _, ok, _ := store.GetByID(req.Context(), "01REC1"); !ok {
		t.Error("record not stored after sync")
	}
}

func TestHandleSync_ValidationError(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)

	body := `[{"id":"01REC1","patientId":"","riskLevel":"YELLOW_OBSERVE","timestamp":1}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/sync", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp struct {
		Status string   `json:"status"`
		Errors []string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "VALIDATION_ERROR" {
		t.Errorf("status = %q, want VALIDATION_ERROR", resp.Status)
	}
	if len(resp.Errors) == 0 {
		t.Error("errors list is empty")
	}

	if all, _ := store.List(req.Context()); len(all) != 0 {
		t.Errorf("stored %d records after rejected batch, want 0", len(all))
	}
}

func TestHandleSync_InvalidJSON(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/sync", strings.NewReader(`{bad`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleSync_Redelivery(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/sync", strings.NewReader(validBatch()))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	all, _ := store.List(context.Background())
	if len(all) != 1 {
		t.Errorf("stored %d records after redelivery, want 1", len(all))
	}
}

func TestHandleEscalate(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	body := `{"patientId":"PT-9","riskLevel":"RED_EMERGENCY","reason":"unconscious","location":"Outpost 12"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/escalate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Status       string `json:"status"`
		EscalationID string `json:"escalationId"`
		Instruction  string `json:"instruction"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ESCALATED" {
		t.Errorf("status = %q, want ESCALATED", resp.Status)
	}
	if !strings.HasPrefix(resp.EscalationID, "ESC-") {
		t.Errorf("escalationId = %q, want ESC- prefix", resp.EscalationID)
	}
	if resp.Instruction != ingest.EscalationInstruction {
		t.Errorf("instruction = %q", resp.Instruction)
	}
}

func TestHandleEscalate_RejectsNonEmergency(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	body := `{"patientId":"PT-9","riskLevel":"GREEN_STABLE","reason":"mild cough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/escalate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "VALIDATION_ERROR") {
		t.Errorf("body = %s, want VALIDATION_ERROR", rec.Body.String())
	}
}

func TestHandleGetAssessment(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	// Seed through the sync endpoint so the path matches production flow.
	seed := httptest.NewRequest(http.MethodPost, "/api/v1/triage/sync", strings.NewReader(validBatch()))
	r.ServeHTTP(httptest.NewRecorder(), seed)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/01REC1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got ingest.StoredRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "01REC1" || got.RiskLevel != string(triage.RiskYellowObserve) {
		t.Errorf("got %+v", got)
	}
}

func TestHandleGetAssessment_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleListAssessments_Empty(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"assessments":[]`) {
		t.Errorf("empty list should encode as [], got %s", rec.Body.String())
	}
}

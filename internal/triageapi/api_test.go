package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/outpost/internal/triage"
)

type mockService struct {
	assessments map[string]*triage.Assessment
	triageErr   error
	listErr     error
	lastReq     *triage.Request
}

func newMockService(assessments ...*triage.Assessment) *mockService {
	m := &mockService{assessments: make(map[string]*triage.Assessment)}
	for _, a := range assessments {
		m.assessments[a.ID] = a
	}
	return m
}

func (m *mockService) Triage(ctx context.Context, req *triage.Request) (*triage.Assessment, error) {
	m.lastReq = req
	if m.triageErr != nil {
		return nil, m.triageErr
	}
	a := &triage.Assessment{
		ID:              "01TESTULID",
		PatientID:       req.PatientID,
		RiskLevel:       triage.RiskGreenStable,
		Suggestions:     []string{"Rest at home"},
		Timestamp:       time.Now().UTC(),
		ConfidenceScore: 0.85,
		SyncStatus:      triage.SyncPending,
	}
	m.assessments[a.ID] = a
	return a, nil
}

func (m *mockService) Get(ctx context.Context, id string) (*triage.Assessment, bool, error) {
	a, ok := m.assessments[id]
	return a, ok, nil
}

func (m *mockService) List(ctx context.Context) ([]*triage.Assessment, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*triage.Assessment, 0, len(m.assessments))
	for _, a := range m.assessments {
		out = append(out, a)
	}
	return out, nil
}

type mockKicker struct{ kicks int }

func (m *mockKicker) Kick() { m.kicks++ }

func newTestRouter(t *testing.T, svc TriageService, kicker Kicker) chi.Router {
	t.Helper()
	api := New(nil, svc, kicker)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, newMockService(), nil)
	if api == nil {
		t.Fatal("New(nil, svc, nil) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, svc, nil) left logger nil; expected Nop logger")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(log.Nop(), nil, nil)
}

func TestHandleTriage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"valid request", http.MethodPost, `{"patientId":"PT-100","symptoms":"fever and cough","age":34,"temperature":38.1}`, http.StatusCreated},
		{"invalid JSON", http.MethodPost, `{bad`, http.StatusBadRequest},
		{"missing patientId", http.MethodPost, `{"symptoms":"fever"}`, http.StatusBadRequest},
		{"missing symptoms", http.MethodPost, `{"patientId":"PT-100"}`, http.StatusBadRequest},
		{"GET not allowed", http.MethodGet, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(t, newMockService(), nil)
			req := httptest.NewRequest(tt.method, "/api/v1/triage", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s /api/v1/triage = %d, want %d", tt.method, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleTriage_PassesRequestThrough(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	r := newTestRouter(t, svc, nil)

	body := `{"patientId":"PT-7","symptoms":"severe dehydration","age":2,"temperature":39.2,"imageRef":"/sdcard/img1.jpg"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	got := svc.lastReq
	if got == nil {
		t.Fatal("service never received the request")
	}
	if got.PatientID != "PT-7" || got.Symptoms != "severe dehydration" || got.Age != 2 {
		t.Errorf("request passed through = %+v", got)
	}
	if got.Temperature != 39.2 || got.ImageRef != "/sdcard/img1.jpg" {
		t.Errorf("vitals fields passed through = %+v", got)
	}

	var resp triage.Assessment
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PatientID != "PT-7" {
		t.Errorf("response patientId = %q, want PT-7", resp.PatientID)
	}
}

func TestHandleTriage_ServiceError(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	svc.triageErr = errors.New("disk full")
	r := newTestRouter(t, svc, nil)

	body := `{"patientId":"PT-100","symptoms":"fever"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHandleGetAssessment(t *testing.T) {
	t.Parallel()

	stored := &triage.Assessment{
		ID:         "01KNOWN",
		PatientID:  "PT-1",
		RiskLevel:  triage.RiskRedEmergency,
		SyncStatus: triage.SyncSynced,
	}
	r := newTestRouter(t, newMockService(stored), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/01KNOWN", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got triage.Assessment
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "01KNOWN" || got.RiskLevel != triage.RiskRedEmergency {
		t.Errorf("got %+v", got)
	}
}

func TestHandleGetAssessment_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleListAssessments(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(
		&triage.Assessment{ID: "a1", PatientID: "PT-1"},
		&triage.Assessment{ID: "a2", PatientID: "PT-2"},
	), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Assessments []*triage.Assessment `json:"assessments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Assessments) != 2 {
		t.Errorf("len(assessments) = %d, want 2", len(resp.Assessments))
	}
}

func TestHandleListAssessments_Empty(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(), nil)

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

func TestHandleKickSync(t *testing.T) {
	t.Parallel()

	kicker := &mockKicker{}
	r := newTestRouter(t, newMockService(), kicker)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if kicker.kicks != 1 {
		t.Errorf("kicks = %d, want 1", kicker.kicks)
	}
}

func TestHandleKickSync_NotConfigured(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

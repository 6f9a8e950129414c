// Package triageapi exposes the edge node's HTTP surface: triage intake and
// the local assessment feed.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/outpost/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Triage(ctx context.Context, req *triage.Request) (*triage.Assessment, error)
	Get(ctx context.Context, id string) (*triage.Assessment, bool, error)
	List(ctx context.Context) ([]*triage.Assessment, error)
}

// Kicker requests an immediate sync run. Optional.
type Kicker interface {
	Kick()
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
	kicker Kicker
}

// New creates a new API handler. kicker may be nil.
func New(logger log.Logger, svc TriageService, kicker Kicker) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		kicker: kicker,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage", a.handleTriage)
		r.Get("/assessments", a.handleListAssessments)
		r.Get("/assessments/{id}", a.handleGetAssessment)
		r.Post("/sync", a.handleKickSync)
	})
}

type triageRequest struct {
	PatientID   string  `json:"patientId"`
	Symptoms    string  `json:"symptoms"`
	Age         int     `json:"age"`
	Temperature float64 `json:"temperature"`
	ImageRef    string  `json:"imageRef,omitempty"`
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		http.Error(w, `{"error":"patientId is required"}`, http.StatusBadRequest)
		return
	}
	if req.Symptoms == "" {
		http.Error(w, `{"error":"symptoms is required"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("outpost.patient.id", req.PatientID))

	a.logger.Info(r.Context(), "triage request received",
		"patient_id", req.PatientID,
		"age", req.Age,
		"temperature", req.Temperature,
	)

	assessment, err := a.svc.Triage(r.Context(), &triage.Request{
		PatientID:   req.PatientID,
		Symptoms:    req.Symptoms,
		Age:         req.Age,
		Temperature: req.Temperature,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "triage failed", "patient_id", req.PatientID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("outpost.triage.risk_level", string(assessment.RiskLevel)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(assessment)
}

func (a *API) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("outpost.assessment.id", id))

	assessment, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get assessment", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(assessment)
}

func (a *API) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	assessments, err := a.svc.List(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list assessments")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if assessments == nil {
		assessments = []*triage.Assessment{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"assessments": assessments,
	})
}

func (a *API) handleKickSync(w http.ResponseWriter, r *http.Request) {
	if a.kicker == nil {
		http.Error(w, `{"error":"sync not configured"}`, http.StatusServiceUnavailable)
		return
	}
	a.kicker.Kick()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "TRIGGERED"})
}

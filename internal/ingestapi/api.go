// Package ingestapi exposes the central system's HTTP surface: bulk sync
// intake, emergency escalation, and the aggregated assessment feed.
package ingestapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/outpost/internal/ingest"
	"github.com/linnemanlabs/outpost/internal/remote"
)

// IngestService defines the business operations ingestapi needs.
type IngestService interface {
	Ingest(ctx context.Context, records []remote.Record) (*remote.SyncResult, error)
	Escalate(ctx context.Context, req *remote.EscalationRequest) (*ingest.Escalation, error)
	Get(ctx context.Context, id string) (*ingest.StoredRecord, bool, error)
	List(ctx context.Context) ([]*ingest.StoredRecord, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IngestService
}

// New creates a new API handler.
func New(logger log.Logger, svc IngestService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("ingest service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage/sync", a.handleSync)
		r.Post("/triage/escalate", a.handleEscalate)
		r.Get("/assessments", a.handleListAssessments)
		r.Get("/assessments/{id}", a.handleGetAssessment)
	})
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	var records []remote.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "VALIDATION_ERROR",
			"errors": []string{"invalid payload"},
		})
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("centrald.sync.batch_size", len(records)))

	res, err := a.svc.Ingest(r.Context(), records)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			a.logger.Warn(r.Context(), "sync batch rejected", "problems", verr.Problems)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "VALIDATION_ERROR",
				"errors": verr.Problems,
			})
			return
		}
		a.logger.Error(r.Context(), err, "sync batch failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "ERROR",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleEscalate(w http.ResponseWriter, r *http.Request) {
	var req remote.EscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "VALIDATION_ERROR",
			"errors": []string{"invalid payload"},
		})
		return
	}

	esc, err := a.svc.Escalate(r.Context(), &req)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "VALIDATION_ERROR",
				"errors": verr.Problems,
			})
			return
		}
		a.logger.Error(r.Context(), err, "escalation failed", "patient_id", req.PatientID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "ERROR",
		})
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("centrald.escalation.id", esc.ID))

	writeJSON(w, http.StatusOK, remote.EscalationResponse{
		Status:       "ESCALATED",
		EscalationID: esc.ID,
		Instruction:  esc.Instruction,
	})
}

func (a *API) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get assessment", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.List(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list assessments")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*ingest.StoredRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

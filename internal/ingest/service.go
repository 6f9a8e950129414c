// Package ingest is the central system's intake service: it accepts
// assessment batches from edge nodes with exactly-once-effective semantics
// and mints emergency escalations.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/outpost/internal/remote"
	"github.com/linnemanlabs/outpost/internal/triage"
)

// EscalationInstruction is returned with every minted escalation.
const EscalationInstruction = "Notify nearest District Hospital immediately"

// ValidationError rejects a whole batch. The edge node keeps its records
// PENDING and retries, so partial acceptance would make redelivery
// ambiguous.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("batch rejected: %s", strings.Join(e.Problems, "; "))
}

// Escalation is one minted emergency alert.
type Escalation struct {
	ID          string    `json:"escalationId"`
	PatientID   string    `json:"patientId"`
	Reason      string    `json:"reason"`
	Location    string    `json:"location"`
	Instruction string    `json:"instruction"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier fans an escalation out to an alerting channel.
type Notifier interface {
	Notify(ctx context.Context, esc *Escalation) error
}

// Service handles assessment intake and escalations.
type Service struct {
	store    Store
	notifier Notifier // may be nil
	logger   log.Logger
	metrics  *Metrics // may be nil
}

// NewService creates the intake service. notifier and metrics are optional.
func NewService(store Store, notifier Notifier, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Ingest accepts one batch. Validation is all-or-nothing: any invalid record
// rejects the whole batch and nothing is stored. Duplicate ids against the
// store are silent no-ops; the receipt count covers the records received,
// not the rows inserted, so redelivered batches acknowledge identically.
func (s *Service) Ingest(ctx context.Context, records []remote.Record) (*remote.SyncResult, error) {
	if err := validateBatch(records); err != nil {
		if s.metrics != nil {
			s.metrics.BatchesTotal.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	receivedAt := time.Now().UTC()
	inserted := 0
	for i := range records {
		ok, err := s.store.InsertIfAbsent(ctx, &StoredRecord{
			Record:     records[i],
			ReceivedAt: receivedAt,
		})
		if err != nil {
			if s.metrics != nil {
				s.metrics.BatchesTotal.WithLabelValues("error").Inc()
			}
			return nil, fmt.Errorf("store record %s: %w", records[i].ID, err)
		}
		if ok {
			inserted++
		}
	}

	s.logger.Info(ctx, "batch ingested",
		"received", len(records),
		"inserted", inserted,
		"duplicates", len(records)-inserted,
	)
	if s.metrics != nil {
		s.metrics.BatchesTotal.WithLabelValues("accepted").Inc()
		s.metrics.RecordsIngested.Add(float64(inserted))
		s.metrics.DuplicateRecords.Add(float64(len(records) - inserted))
	}

	return &remote.SyncResult{
		Status:   "SUCCESS",
		SyncedAt: receivedAt,
		Count:    len(records),
	}, nil
}

// Escalate mints an escalation for an emergency-level request. Notification
// fan-out is best effort and off the response path; the caller gets its
// escalation id regardless.
func (s *Service) Escalate(ctx context.Context, req *remote.EscalationRequest) (*Escalation, error) {
	if req.PatientID == "" {
		return nil, &ValidationError{Problems: []string{"patientId is required"}}
	}
	if req.RiskLevel != string(triage.RiskRedEmergency) {
		return nil, &ValidationError{
			Problems: []string{fmt.Sprintf("riskLevel %q is not escalatable", req.RiskLevel)},
		}
	}

	esc := &Escalation{
		ID:          "ESC-" + ulid.Make().String(),
		PatientID:   req.PatientID,
		Reason:      req.Reason,
		Location:    req.Location,
		Instruction: EscalationInstruction,
		CreatedAt:   time.Now().UTC(),
	}

	s.logger.Warn(ctx, "emergency escalation",
		"escalation_id", esc.ID,
		"patient_id", esc.PatientID,
		"location", esc.Location,
		"reason", esc.Reason,
	)
	if s.metrics != nil {
		s.metrics.EscalationsTotal.Inc()
	}

	if s.notifier != nil {
		go func() {
			ctx := context.WithoutCancel(ctx)
			if err := s.notifier.Notify(ctx, esc); err != nil {
				s.logger.Warn(ctx, "escalation notify failed",
					"escalation_id", esc.ID, "error", err)
			}
		}()
	}

	return esc, nil
}

// Get returns one stored record by id.
func (s *Service) Get(ctx context.Context, id string) (*StoredRecord, bool, error) {
	return s.store.GetByID(ctx, id)
}

// List returns the full assessment feed, newest first.
func (s *Service) List(ctx context.Context) ([]*StoredRecord, error) {
	return s.store.List(ctx)
}

// validateBatch checks record shape only. Duplicate ids, within the batch or
// against the store, are not errors: redelivery makes them routine, and
// insert-if-absent collapses them to one row.
func validateBatch(records []remote.Record) *ValidationError {
	var problems []string
	for i, r := range records {
		if r.ID == "" {
			problems = append(problems, fmt.Sprintf("record %d: id is required", i))
		}
		if r.PatientID == "" {
			problems = append(problems, fmt.Sprintf("record %d: patientId is required", i))
		}
		if !triage.RiskLevel(r.RiskLevel).Valid() {
			problems = append(problems, fmt.Sprintf("record %d: unknown riskLevel %q", i, r.RiskLevel))
		}
		if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
			problems = append(problems, fmt.Sprintf("record %d: confidenceScore %v out of range", i, r.ConfidenceScore))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

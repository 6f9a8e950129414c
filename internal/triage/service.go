package triage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// fallbackLevel is substituted when the classifier fails outright. The
// fail-safe principle: on model failure degrade toward caution, never toward
// false reassurance.
const fallbackLevel = RiskYellowObserve

// suggestionsByLevel is the fixed advisory mapping keyed by final risk
// level. Display-only, not safety-critical.
var suggestionsByLevel = map[RiskLevel][]string{
	RiskGreenStable:   {"Increase fluid intake", "Monitor temperature", "Rest at home"},
	RiskYellowObserve: {"Visit PHC within 24 hours", "Isolation if contagious", "Paracetamol as prescribed"},
	RiskRedEmergency:  {"IMMEDIATE AMBULANCE", "Oxygen support if available", "Notify nearest District Hospital"},
}

// Request carries one patient presentation into triage.
type Request struct {
	PatientID   string
	Symptoms    string
	Age         int
	Temperature float64
	ImageRef    string // optional; empty means no captured image
}

// Service is the triage orchestrator: it fuses the classifier's prediction,
// the optional vitals detection, and the safety guardrail into one immutable
// Assessment and persists it exactly once. The triage path makes zero
// network calls to the central system; delivery is entirely the sync
// engine's job, so triage completes with no connectivity at all.
type Service struct {
	store      Store
	classifier Classifier
	detector   VitalsDetector // may be nil
	escalator  Escalator      // may be nil
	logger     log.Logger
	metrics    *Metrics // may be nil
}

// NewService creates a triage service. detector, escalator, and metrics are
// optional.
func NewService(store Store, classifier Classifier, detector VitalsDetector, escalator Escalator, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:      store,
		classifier: classifier,
		detector:   detector,
		escalator:  escalator,
		logger:     logger,
		metrics:    metrics,
	}
}

// Triage runs one assessment end to end and returns the persisted record.
// The only fatal failure is the durable write: an assessment that is not
// recorded is a lost clinical record, so store errors propagate and nothing
// partial is ever persisted.
func (s *Service) Triage(ctx context.Context, req *Request) (*Assessment, error) {
	if req.PatientID == "" {
		return nil, fmt.Errorf("triage: patient id is required")
	}

	start := time.Now()
	L := s.logger.With("patient_id", req.PatientID)

	aiLevel, confidence := s.classify(ctx, L, req.Symptoms)
	vitals := s.detectVitals(ctx, L, req.ImageRef)

	finalLevel := Resolve(aiLevel, req.Symptoms, req.Age, req.Temperature)
	escalated := finalLevel == RiskRedEmergency

	// A rule-forced upgrade pins confidence to 1.0: the result is
	// deterministic, not model-derived.
	overridden := escalated && aiLevel != RiskRedEmergency
	if overridden {
		confidence = 1.0
		if rule, ok := matchGuardrail(req.Symptoms, req.Age, req.Temperature); ok {
			L.Info(ctx, "guardrail override", "rule", rule, "ai_level", aiLevel)
			if s.metrics != nil {
				s.metrics.GuardrailOverrides.WithLabelValues(rule).Inc()
			}
		}
	}

	var imageRef *string
	if req.ImageRef != "" {
		imageRef = &req.ImageRef
	}

	a := &Assessment{
		ID:                          ulid.Make().String(),
		PatientID:                   req.PatientID,
		RiskLevel:                   finalLevel,
		PrimaryObservation:          req.Symptoms,
		Suggestions:                 buildSuggestions(finalLevel, vitals),
		RequiresImmediateEscalation: escalated,
		ImageRef:                    imageRef,
		DetectedVitals:              vitals,
		Timestamp:                   time.Now(),
		ConfidenceScore:             confidence,
		SyncStatus:                  SyncPending,
	}

	if err := s.store.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("persist assessment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TriagesTotal.WithLabelValues(string(finalLevel)).Inc()
		s.metrics.TriageDuration.WithLabelValues(string(finalLevel)).Observe(time.Since(start).Seconds())
	}
	L.Info(ctx, "triage complete",
		"assessment_id", a.ID,
		"risk_level", finalLevel,
		"escalation", escalated,
		"confidence", confidence,
	)

	if escalated && s.escalator != nil {
		// Best effort, off the triage path. The record reaches the central
		// system through the sync pipeline regardless of this outcome.
		go s.notifyEscalation(context.WithoutCancel(ctx), a)
	}

	return a, nil
}

// classify invokes the classifier, substituting the conservative default on
// failure. Confidence is 0 for the substitute: no model output exists, and
// 1.0 is reserved for guardrail overrides.
func (s *Service) classify(ctx context.Context, L log.Logger, symptoms string) (RiskLevel, float64) {
	c, err := s.classifier.Classify(ctx, symptoms)
	if err != nil {
		L.Warn(ctx, "classifier failed, degrading to conservative default",
			"error", err, "fallback", fallbackLevel)
		if s.metrics != nil {
			s.metrics.ClassifierFailures.Inc()
		}
		return fallbackLevel, 0
	}
	return c.Level, c.Confidence
}

// detectVitals invokes the detector when an image is present. Failures never
// propagate: detection degrades to an empty result.
func (s *Service) detectVitals(ctx context.Context, L log.Logger, imageRef string) map[string]string {
	if imageRef == "" || s.detector == nil {
		return nil
	}
	vitals, err := s.detector.Detect(ctx, imageRef)
	if err != nil {
		L.Warn(ctx, "vitals detection failed, continuing without", "error", err)
		if s.metrics != nil {
			s.metrics.VitalsFailures.Inc()
		}
		return nil
	}
	return vitals
}

// Get returns a stored assessment by id.
func (s *Service) Get(ctx context.Context, id string) (*Assessment, bool, error) {
	a, ok, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get assessment %s: %w", id, err)
	}
	return a, ok, nil
}

// List returns all stored assessments, newest first.
func (s *Service) List(ctx context.Context) ([]*Assessment, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return out, nil
}

func (s *Service) notifyEscalation(ctx context.Context, a *Assessment) {
	if err := s.escalator.Escalate(ctx, a); err != nil {
		s.logger.Warn(ctx, "escalation notify failed",
			"assessment_id", a.ID, "patient_id", a.PatientID, "error", err)
		return
	}
	s.logger.Info(ctx, "escalation notified", "assessment_id", a.ID)
}

// buildSuggestions maps the final level to its fixed advisories and appends
// one check per detected vital, in sorted condition order.
func buildSuggestions(level RiskLevel, vitals map[string]string) []string {
	base := suggestionsByLevel[level]
	out := make([]string, len(base), len(base)+len(vitals))
	copy(out, base)

	conditions := make([]string, 0, len(vitals))
	for c := range vitals {
		conditions = append(conditions, c)
	}
	sort.Strings(conditions)
	for _, c := range conditions {
		out = append(out, "Check for "+c)
	}
	return out
}

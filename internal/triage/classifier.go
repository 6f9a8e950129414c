package triage

import "context"

// Classification is a classifier's verdict on a symptom description.
type Classification struct {
	Level      RiskLevel
	Confidence float64 // model confidence in [0,1]
}

// Classifier is the interface for any symptom risk classifier backend.
// An error return means the model produced nothing usable; the service
// substitutes a conservative default rather than aborting triage.
type Classifier interface {
	Classify(ctx context.Context, symptoms string) (Classification, error)
}

// VitalsDetector analyzes a captured image reference for visible conditions.
// The returned map is condition name to a human-readable probability note.
// Errors are swallowed to an empty result by the service; detection never
// blocks or fails a triage.
type VitalsDetector interface {
	Detect(ctx context.Context, imageRef string) (map[string]string, error)
}

// Escalator delivers an out-of-band emergency notification for a completed
// RED_EMERGENCY assessment. Best effort: the triage result does not depend
// on it, and the assessment syncs through the normal pipeline regardless.
type Escalator interface {
	Escalate(ctx context.Context, a *Assessment) error
}

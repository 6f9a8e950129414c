// Package keyword provides a deterministic, fully offline symptom
// classifier. It is the default backend on edge nodes without a model
// endpoint configured: crude, but it never needs connectivity and the
// safety guardrail sits above it either way.
package keyword

import (
	"context"
	"strings"

	"github.com/linnemanlabs/outpost/internal/triage"
)

// confidence is fixed: the heuristic has no calibrated probability.
const confidence = 0.85

// observeTerms suggest a presentation worth a clinic visit.
var observeTerms = []string{
	"fever", "vomiting", "diarrhea", "diarrhoea", "dehydration",
	"rash", "persistent cough", "wheezing", "infection",
}

// urgentTerms suggest the model itself should call emergency, independent
// of the guardrail's own keyword table.
var urgentTerms = []string{
	"not breathing", "collapsed", "severe pain", "blood in",
}

// Classifier maps symptom text to a risk level by keyword scan.
type Classifier struct{}

// New returns the keyword classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify never fails: any text maps to a defined level.
func (c *Classifier) Classify(_ context.Context, symptoms string) (triage.Classification, error) {
	s := strings.ToLower(symptoms)

	level := triage.RiskGreenStable
	for _, term := range observeTerms {
		if strings.Contains(s, term) {
			level = triage.RiskYellowObserve
			break
		}
	}
	for _, term := range urgentTerms {
		if strings.Contains(s, term) {
			level = triage.RiskRedEmergency
			break
		}
	}

	return triage.Classification{Level: level, Confidence: confidence}, nil
}

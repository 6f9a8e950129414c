package triage

import "time"

// RiskLevel is the three-tier triage outcome, totally ordered by severity.
type RiskLevel string

const (
	// RiskGreenStable means home care is sufficient.
	RiskGreenStable RiskLevel = "GREEN_STABLE"

	// RiskYellowObserve means a clinic visit within 24-48h.
	RiskYellowObserve RiskLevel = "YELLOW_OBSERVE"

	// RiskRedEmergency means immediate hospital referral.
	RiskRedEmergency RiskLevel = "RED_EMERGENCY"
)

// Rank is the canonical severity ordering. Every upgrade-only comparison in
// the codebase goes through this function; there are no ad hoc comparisons.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskGreenStable:
		return 0
	case RiskYellowObserve:
		return 1
	case RiskRedEmergency:
		return 2
	}
	return -1
}

// Valid reports whether l is one of the three defined levels.
func (l RiskLevel) Valid() bool {
	return l.Rank() >= 0
}

// MaxRiskLevel returns the more severe of a and b.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// SyncStatus tracks whether an assessment has reached the central system.
type SyncStatus string

const (
	// SyncPending means created locally, not yet delivered.
	SyncPending SyncStatus = "PENDING"

	// SyncSynced means confirmed accepted by the central system.
	SyncSynced SyncStatus = "SYNCED"

	// SyncFailed means the last sync run exhausted its retries with this
	// record still undelivered. Bookkeeping only: failed records are picked
	// up again by the next scheduled run.
	SyncFailed SyncStatus = "FAILED"
)

// Assessment is the unit of record. All fields except SyncStatus are fixed
// at creation by the triage service; SyncStatus is owned by the sync engine
// thereafter.
type Assessment struct {
	ID                          string            `json:"id"`
	PatientID                   string            `json:"patientId"`
	RiskLevel                   RiskLevel         `json:"riskLevel"`
	PrimaryObservation          string            `json:"primaryObservation"`
	Suggestions                 []string          `json:"suggestions"`
	RequiresImmediateEscalation bool              `json:"requiresImmediateEscalation"`
	ImageRef                    *string           `json:"imageRef,omitempty"`
	DetectedVitals              map[string]string `json:"detectedVitals,omitempty"`
	Timestamp                   time.Time         `json:"timestamp"`
	ConfidenceScore             float64           `json:"confidenceScore"`
	SyncStatus                  SyncStatus        `json:"syncStatus"`
}

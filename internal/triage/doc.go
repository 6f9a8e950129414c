// Package triage is the business core of Outpost's field triage: the
// Assessment domain model, the deterministic safety guardrail, the
// orchestrating Service (classifier + vitals + guardrail fusion), and the
// Store interface for durable on-device persistence.
package triage

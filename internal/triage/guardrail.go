package triage

import "strings"

// This file is the safety specification. The rule table below is the single
// audited source of the deterministic escalation contract: an explicit
// ordered list of pure predicates, evaluated in fixed precedence, first match
// short-circuits. Rules may only ever upgrade an assessment to
// RED_EMERGENCY; nothing in this file can lower a risk level.
//
// Changing a keyword or threshold here is a clinical sign-off decision, not
// a refactor.

// emergencyKeywords is the canonical keyword set, matched case-insensitively
// as substrings of the symptom text.
var emergencyKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"shortness of breath",
	"stroke",
	"paralysis",
	"heavy bleeding",
	"unconscious",
	"seizure",
	"severe burn",
	"cyanosis",
	"low oxygen",
}

// guardrailRule is one predicate in the escalation table.
type guardrailRule struct {
	name  string
	match func(symptoms string, age int, temperature float64) bool
}

// guardrailRules is evaluated in order; the first match escalates.
var guardrailRules = []guardrailRule{
	{
		name: "emergency_keyword",
		match: func(symptoms string, _ int, _ float64) bool {
			s := strings.ToLower(symptoms)
			for _, kw := range emergencyKeywords {
				if strings.Contains(s, kw) {
					return true
				}
			}
			return false
		},
	},
	{
		name: "severe_hyperpyrexia",
		match: func(_ string, _ int, temperature float64) bool {
			return temperature > 40.0
		},
	},
	{
		name: "hypothermia",
		match: func(_ string, _ int, temperature float64) bool {
			return temperature < 35.0
		},
	},
	{
		name: "infant_fever",
		match: func(_ string, age int, temperature float64) bool {
			return age < 1 && temperature > 38.5
		},
	},
	{
		name: "elderly_fever",
		match: func(_ string, age int, temperature float64) bool {
			return age > 70 && temperature > 39.0
		},
	},
}

// MustEscalate reports whether the hard safety rules demand RED_EMERGENCY
// for the given presentation. Pure and total: any input produces a defined
// answer, no I/O, no failure mode.
func MustEscalate(symptoms string, age int, temperature float64) bool {
	_, ok := matchGuardrail(symptoms, age, temperature)
	return ok
}

// matchGuardrail returns the name of the first matching rule, if any.
func matchGuardrail(symptoms string, age int, temperature float64) (string, bool) {
	for _, r := range guardrailRules {
		if r.match(symptoms, age, temperature) {
			return r.name, true
		}
	}
	return "", false
}

// Resolve fuses the classifier's level with the safety rules. Monotonic
// upgrade-only: the result is never less severe than aiLevel. If the rules
// demand escalation the result is RED_EMERGENCY regardless of aiLevel;
// otherwise aiLevel passes through unchanged.
func Resolve(aiLevel RiskLevel, symptoms string, age int, temperature float64) RiskLevel {
	if MustEscalate(symptoms, age, temperature) {
		return MaxRiskLevel(aiLevel, RiskRedEmergency)
	}
	return aiLevel
}

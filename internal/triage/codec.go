package triage

import (
	"sort"
	"strings"
)

// Delimited row encodings for the durable store. The formats are fixed wire
// contracts shared with existing rows on deployed devices:
//
//	suggestions:    entries joined by "|"
//	detectedVitals: "key:value" pairs joined by "|", split on the first ":"
//
// Both round-trip exactly for values not containing the delimiters.

const (
	entrySep     = "|"
	vitalsKVSsep = ":"
)

// EncodeSuggestions serializes a suggestion list for a store row.
func EncodeSuggestions(suggestions []string) string {
	return strings.Join(suggestions, entrySep)
}

// DecodeSuggestions is the inverse of EncodeSuggestions. An empty input
// yields nil.
func DecodeSuggestions(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, entrySep)
}

// EncodeVitals serializes a detected-vitals mapping for a store row.
// Entries are emitted in sorted key order so encoding is deterministic.
func EncodeVitals(vitals map[string]string) string {
	if len(vitals) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vitals))
	for k := range vitals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, k+vitalsKVSsep+vitals[k])
	}
	return strings.Join(entries, entrySep)
}

// DecodeVitals is the inverse of EncodeVitals: split on "|", then on the
// first ":" per entry. Entries without a ":" are kept with an empty value
// rather than dropped. An empty input yields nil.
func DecodeVitals(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, entry := range strings.Split(s, entrySep) {
		k, v, _ := strings.Cut(entry, vitalsKVSsep)
		out[k] = v
	}
	return out
}

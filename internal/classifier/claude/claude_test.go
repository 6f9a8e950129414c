package claude

import (
	"testing"

	"github.com/linnemanlabs/outpost/internal/triage"
)

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	c, err := parseVerdict(`{"risk_level":"YELLOW_OBSERVE","confidence":0.8}`)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if c.Level != triage.RiskYellowObserve {
		t.Errorf("Level = %s, want YELLOW_OBSERVE", c.Level)
	}
	if c.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", c.Confidence)
	}
}

func TestParseVerdict_CodeFenced(t *testing.T) {
	t.Parallel()

	c, err := parseVerdict("```json\n{\"risk_level\":\"RED_EMERGENCY\",\"confidence\":0.95}\n```")
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if c.Level != triage.RiskRedEmergency {
		t.Errorf("Level = %s, want RED_EMERGENCY", c.Level)
	}
}

func TestParseVerdict_Errors(t *testing.T) {
	t.Parallel()

	cases := []string{
		`not json at all`,
		`{"risk_level":"ORANGE_PANIC","confidence":0.5}`,
		`{"risk_level":"GREEN_STABLE","confidence":1.5}`,
		`{"risk_level":"GREEN_STABLE","confidence":-0.1}`,
		`{}`,
	}
	for _, in := range cases {
		if _, err := parseVerdict(in); err == nil {
			t.Errorf("parseVerdict(%q): expected error", in)
		}
	}
}

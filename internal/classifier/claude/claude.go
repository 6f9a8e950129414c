// Package claude provides a Claude-backed implementation of
// triage.Classifier. Any API or parse failure is returned as an error; the
// triage service owns the degrade-toward-caution fallback.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/outpost/internal/triage"
)

const (
	requestTimeout = 30 * time.Second
	maxTokens      = 128
)

const systemPrompt = `You are a triage classifier for frontline health workers.
Given a free-text symptom description, respond with ONLY a JSON object:
{"risk_level":"GREEN_STABLE"|"YELLOW_OBSERVE"|"RED_EMERGENCY","confidence":<0..1>}
GREEN_STABLE: home care is sufficient. YELLOW_OBSERVE: clinic visit within
24-48 hours. RED_EMERGENCY: immediate hospital referral. When unsure, prefer
the more severe level. No prose, no markdown, JSON only.`

// Classifier calls the Claude API for symptom classification.
type Classifier struct {
	client anthropic.Client
	model  string
}

// New creates a Claude classifier with the given API key and model name.
func New(apiKey, model string) *Classifier {
	return &Classifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

type verdict struct {
	RiskLevel  string  `json:"risk_level"`
	Confidence float64 `json:"confidence"`
}

// Classify sends one symptom description and parses the model's verdict.
func (c *Classifier) Classify(ctx context.Context, symptoms string) (triage.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(symptoms)),
		},
	})
	if err != nil {
		return triage.Classification{}, fmt.Errorf("claude: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return triage.Classification{}, fmt.Errorf("claude: no text content in response")
	}

	return parseVerdict(text)
}

// parseVerdict decodes the model's JSON verdict, tolerating code fences but
// nothing else. Unknown levels and out-of-range confidences are errors, not
// guesses.
func parseVerdict(text string) (triage.Classification, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return triage.Classification{}, fmt.Errorf("claude: parse verdict %q: %w", text, err)
	}

	level := triage.RiskLevel(v.RiskLevel)
	if !level.Valid() {
		return triage.Classification{}, fmt.Errorf("claude: unknown risk level %q", v.RiskLevel)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return triage.Classification{}, fmt.Errorf("claude: confidence %v out of range", v.Confidence)
	}

	return triage.Classification{Level: level, Confidence: v.Confidence}, nil
}

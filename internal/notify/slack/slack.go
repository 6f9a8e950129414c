// Package slack sends emergency escalation alerts to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/outpost/internal/ingest"
)

const (
	maxReasonLen = 1000
	httpTimeout  = 10 * time.Second
)

// Notifier sends escalations to a Slack webhook. Implements ingest.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts an escalation to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, esc *ingest.Escalation) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(esc)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(esc *ingest.Escalation) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(esc),
			{"type": "divider"},
			fieldsBlock(esc),
			{"type": "divider"},
			reasonBlock(esc),
			{"type": "divider"},
			contextBlock(esc),
		},
	}
}

func headerBlock(esc *ingest.Escalation) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("\U0001f534 Emergency Escalation: %s", esc.PatientID),
		},
	}
}

func fieldsBlock(esc *ingest.Escalation) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Patient:* %s", esc.PatientID),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Location:* %s", locationOrUnknown(esc.Location)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Instruction:* %s", esc.Instruction),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func reasonBlock(esc *ingest.Escalation) map[string]any {
	text := truncate(esc.Reason, maxReasonLen)
	if text == "" {
		text = "_No reason provided._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reason*\n\n%s", text),
		},
	}
}

func contextBlock(esc *ingest.Escalation) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("centrald • %s • %s", esc.ID, esc.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func locationOrUnknown(location string) string {
	if location == "" {
		return "unknown"
	}
	return location
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

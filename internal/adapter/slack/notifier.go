// Package slack posts orchestrator notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doctorauto/sophia/internal/port/notifier"
)

// Notifier sends notifications to one Slack channel.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier. An empty URL yields a notifier
// whose Send returns notifier.ErrNotConfigured.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Name() string { return "slack" }

type attachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

type payload struct {
	Attachments []attachment `json:"attachments"`
}

func (n *Notifier) Send(ctx context.Context, note notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(payload{Attachments: []attachment{{
		Color:  levelColor(note.Level),
		Title:  note.Title,
		Text:   note.Message,
		Footer: note.Source,
	}}})
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func levelColor(level string) string {
	switch level {
	case "success":
		return "good"
	case "warning":
		return "warning"
	case "error":
		return "danger"
	default:
		return "#439FE0"
	}
}

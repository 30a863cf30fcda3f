// Package discord posts orchestrator notifications to a Discord webhook.
package discord

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

// Notifier sends notifications as Discord embeds.
type Notifier struct {
	webhookURL string
	username   string
	httpClient *http.Client
}

// NewNotifier creates a Discord notifier posting as username.
func NewNotifier(webhookURL, username string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Name() string { return "discord" }

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Footer      *struct {
		Text string `json:"text"`
	} `json:"footer,omitempty"`
}

type message struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

func (n *Notifier) Send(ctx context.Context, note notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	e := embed{Title: note.Title, Description: note.Message, Color: levelColor(note.Level)}
	if note.Source != "" {
		e.Footer = &struct {
			Text string `json:"text"`
		}{Text: note.Source}
	}
	body, err := json.Marshal(message{Username: n.username, Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 204 on success
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func levelColor(level string) int {
	switch level {
	case "success":
		return 0x2ECC71
	case "warning":
		return 0xF39C12
	case "error":
		return 0xE74C3C
	default:
		return 0x3498DB
	}
}

// Package service contains the orchestrator's use cases.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/doctorauto/sophia/internal/port/notifier"
)

// NotificationService fans a notification out to every configured channel.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService. When enabledEvents
// is empty every source is delivered.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{notifiers: notifiers, enabledEvents: enabled}
}

// Notify delivers n to all notifiers. Failures are logged and do not stop
// delivery to the remaining channels. A nil service is a no-op.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if s == nil {
		return
	}
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}
	for _, p := range s.notifiers {
		err := p.Send(ctx, n)
		switch {
		case errors.Is(err, notifier.ErrNotConfigured):
			continue
		case err != nil:
			slog.WarnContext(ctx, "notification send failed", "provider", p.Name(), "title", n.Title, "error", err)
		default:
			slog.DebugContext(ctx, "notification sent", "provider", p.Name(), "title", n.Title)
		}
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	if s == nil {
		return 0
	}
	return len(s.notifiers)
}

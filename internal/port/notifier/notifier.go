// Package notifier defines the notification port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"`  // "info", "success", "warning", "error"
	Source  string `json:"source"` // e.g. "pagamento.recebido"
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	Name() string
	Send(ctx context.Context, notification Notification) error
}

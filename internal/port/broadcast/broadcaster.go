// Package broadcast defines the port for pushing live events to connected
// dashboard clients.
package broadcast

import "context"

// Event types pushed to clients.
const (
	EventTaskCreated     = "task.created"
	EventDecisionStatus  = "decision.status"
	EventWebhookReceived = "webhook.received"
	EventMetricsUpdate   = "metrics.update"
	EventAnomaly         = "anomaly.detected"
)

// Broadcaster sends typed events to all connected clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

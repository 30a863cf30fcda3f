// Package messagequeue defines the event bus port (interface).
package messagequeue

import "context"

// Handler processes a message received from the bus.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to events.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	Close() error

	IsConnected() bool
}

// Subjects published by the orchestrator. External executors and agent
// runtimes subscribe to these.
const (
	SubjectTaskCreated       = "sophia.tasks.created"
	SubjectTaskDelegated     = "sophia.tasks.delegated"
	SubjectDecisionCreated   = "sophia.decisions.created"
	SubjectDecisionApproved  = "sophia.decisions.approved"
	SubjectDecisionRejected  = "sophia.decisions.rejected"
	SubjectWebhookReceived   = "sophia.webhooks.received"
	SubjectMetricsUpdate     = "sophia.metrics.update"
	SubjectAnomaliesDetected = "sophia.anomalies.detected"
)

// StreamSubjects is the wildcard bound to the JetStream stream.
const StreamSubjects = "sophia.>"

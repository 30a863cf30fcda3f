package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sophia"

// Metrics holds the orchestrator's counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	TasksCreated        metric.Int64Counter
	EnqueueFailures     metric.Int64Counter
	DecisionTransitions metric.Int64Counter
	WebhooksReceived    metric.Int64Counter
	CronRuns            metric.Int64Counter
	CronDuration        metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.TasksCreated, err = meter.Int64Counter("sophia.tasks.created",
		metric.WithDescription("Tasks recorded, by type and whether they were queued")); err != nil {
		return nil, err
	}
	if m.EnqueueFailures, err = meter.Int64Counter("sophia.tasks.enqueue_failures",
		metric.WithDescription("Tasks recorded but not placed on the agent queue")); err != nil {
		return nil, err
	}
	if m.DecisionTransitions, err = meter.Int64Counter("sophia.decisions.transitions",
		metric.WithDescription("Decision status changes by target status")); err != nil {
		return nil, err
	}
	if m.WebhooksReceived, err = meter.Int64Counter("sophia.webhooks.received",
		metric.WithDescription("Inbound webhook events by name")); err != nil {
		return nil, err
	}
	if m.CronRuns, err = meter.Int64Counter("sophia.cron.runs",
		metric.WithDescription("Background job runs by job and outcome")); err != nil {
		return nil, err
	}
	if m.CronDuration, err = meter.Float64Histogram("sophia.cron.duration_seconds",
		metric.WithDescription("Background job duration in seconds")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) TaskCreated(ctx context.Context, taskType string, queued bool) {
	if m == nil {
		return
	}
	m.TasksCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", taskType), attribute.Bool("queued", queued)))
}

func (m *Metrics) EnqueueFailed(ctx context.Context, agentID string) {
	if m == nil {
		return
	}
	m.EnqueueFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("agent_id", agentID)))
}

func (m *Metrics) DecisionTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.DecisionTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) WebhookReceived(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *Metrics) CronRun(ctx context.Context, job string, seconds float64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("job", job), attribute.Bool("ok", err == nil))
	m.CronRuns.Add(ctx, 1, attrs)
	m.CronDuration.Record(ctx, seconds, attrs)
}

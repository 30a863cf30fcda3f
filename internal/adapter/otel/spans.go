package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sophia"

// StartDispatchSpan starts a span around recording and enqueueing a task.
func StartDispatchSpan(ctx context.Context, agentID, taskType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task.dispatch",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("task.type", taskType),
		),
	)
}

// StartDecisionSpan starts a span for a decision status change.
func StartDecisionSpan(ctx context.Context, decisionID, status string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decision.transition",
		trace.WithAttributes(
			attribute.String("decision.id", decisionID),
			attribute.String("decision.status", status),
		),
	)
}

// StartCronSpan starts a root span for one background job run.
func StartCronSpan(ctx context.Context, job string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "cron."+job,
		trace.WithNewRoot(),
		trace.WithAttributes(attribute.String("cron.job", job)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

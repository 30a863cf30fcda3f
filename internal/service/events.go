package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/doctorauto/sophia/internal/port/broadcast"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
)

// Events publishes domain events to the bus and to live clients. Both
// sinks are optional and a nil *Events drops everything.
type Events struct {
	bus messagequeue.Queue
	hub broadcast.Broadcaster
}

// NewEvents creates an Events emitter. Either argument may be nil.
func NewEvents(bus messagequeue.Queue, hub broadcast.Broadcaster) *Events {
	return &Events{bus: bus, hub: hub}
}

// Emit publishes payload on subject and pushes it to clients as liveType.
// An empty subject or liveType skips that sink. Publish failures are logged.
func (e *Events) Emit(ctx context.Context, subject, liveType string, payload any) {
	if e == nil {
		return
	}
	if e.bus != nil && subject != "" {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
		} else if err := e.bus.Publish(ctx, subject, data); err != nil {
			slog.WarnContext(ctx, "publish event", "subject", subject, "error", err)
		}
	}
	if e.hub != nil && liveType != "" {
		e.hub.BroadcastEvent(ctx, liveType, payload)
	}
}

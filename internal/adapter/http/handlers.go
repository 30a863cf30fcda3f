package http

import (
	"context"
	"net/http"

	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/domain/webhook"
	"github.com/doctorauto/sophia/internal/service"
)

// The gateway depends on the use cases through these narrow interfaces;
// the service package provides the implementations.

// StatusReader serves /health and /status.
type StatusReader interface {
	Health(ctx context.Context) (*service.Health, error)
	Status(ctx context.Context) (*service.SystemStatus, error)
}

// Chatter answers operator chat messages.
type Chatter interface {
	Handle(ctx context.Context, message string) (*service.ChatReply, error)
}

// TaskDispatcher records tasks and routes them to agent queues.
type TaskDispatcher interface {
	Create(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	Delegate(ctx context.Context, agentID string, req task.CreateRequest) (*task.Task, *agent.Agent, error)
}

// DecisionLedger lists decisions and applies operator transitions.
type DecisionLedger interface {
	List(ctx context.Context, f decision.ListFilter) ([]decision.Decision, error)
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id, reason string) error
}

// AgentRegistry lists agents with their queue lengths.
type AgentRegistry interface {
	ListActive(ctx context.Context) ([]agent.WithQueue, error)
	Detail(ctx context.Context, id string) (*service.AgentDetail, error)
}

// KnowledgeBase stores and searches knowledge documents.
type KnowledgeBase interface {
	Ingest(ctx context.Context, req knowledge.IngestRequest) (*knowledge.Document, error)
	Query(ctx context.Context, q knowledge.Query) ([]knowledge.Document, error)
	SyncBusinessData(ctx context.Context, coordinatorID string) (int, error)
}

// WebhookIngestor handles inbound business events.
type WebhookIngestor interface {
	Handle(ctx context.Context, ev webhook.Event) error
}

// MetricsReader returns the cached quick metrics or a placeholder.
type MetricsReader interface {
	Quick(ctx context.Context) any
}

// CoordinatorIDs resolves the coordinator agent id.
type CoordinatorIDs interface {
	ID(ctx context.Context) (string, error)
}

// Handlers holds the use cases the route table dispatches to.
type Handlers struct {
	Status      StatusReader
	Chat        Chatter
	Tasks       TaskDispatcher
	Decisions   DecisionLedger
	Agents      AgentRegistry
	Knowledge   KnowledgeBase
	Webhooks    WebhookIngestor
	Metrics     MetricsReader
	Coordinator CoordinatorIDs
	// LiveEvents upgrades GET /ws; nil leaves the route unmounted.
	LiveEvents http.HandlerFunc
	BodyLimit  int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit <= 0 {
		return 1 << 20
	}
	return h.BodyLimit
}

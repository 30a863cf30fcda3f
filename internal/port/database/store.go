// Package database defines the persistent store port (interface).
package database

import (
	"context"
	"time"

	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/domain/task"
)

// AgentStore reads and annotates agents. Agents are seeded externally.
type AgentStore interface {
	ListActiveAgents(ctx context.Context) ([]agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*agent.Agent, error)
	// TouchAgent sets status and stamps the heartbeat.
	TouchAgent(ctx context.Context, id string, status agent.Status) error
	// MarkStaleAgentsOffline flips online agents whose last heartbeat is
	// older than cutoff and returns their names.
	MarkStaleAgentsOffline(ctx context.Context, cutoff time.Time) ([]string, error)
}

// TaskStore records tasks. Status transitions belong to the agent runtime,
// except for the stuck-task sweep.
type TaskStore interface {
	CreateTask(ctx context.Context, agentID string, req task.CreateRequest) (*task.Task, error)
	ListRecentTasks(ctx context.Context, agentID string, limit int) ([]task.Summary, error)
	CountTasks(ctx context.Context, f task.CountFilter) (int, error)
	// FailStuckTasks marks running tasks started before cutoff as failed
	// and returns how many were changed.
	FailStuckTasks(ctx context.Context, cutoff time.Time) (int, error)
}

// DecisionStore persists the decision ledger.
type DecisionStore interface {
	CreateDecision(ctx context.Context, req decision.CreateRequest) (*decision.Decision, error)
	GetDecision(ctx context.Context, id string) (*decision.Decision, error)
	// SetDecisionStatus writes status and result unless the stored status
	// is terminal. It returns domain.ErrNotFound for unknown ids and
	// domain.ErrConflict when the guard rejects the write.
	SetDecisionStatus(ctx context.Context, id string, status decision.Status, result string) error
	ListDecisions(ctx context.Context, f decision.ListFilter) ([]decision.Decision, error)
	CountDecisions(ctx context.Context, status decision.Status) (int, error)
}

// LogStore is the append-only audit trail.
type LogStore interface {
	AppendLog(ctx context.Context, e activity.Entry) error
	ListRecentLogs(ctx context.Context, agentID string, limit int) ([]activity.Entry, error)
	CountLogs(ctx context.Context, level activity.Level, since time.Time) (int, error)
}

// KnowledgeStore holds knowledge documents.
type KnowledgeStore interface {
	CreateDocument(ctx context.Context, req knowledge.IngestRequest) (*knowledge.Document, error)
	// SearchDocuments returns newest documents whose title, content or
	// category contains text, case-insensitively.
	SearchDocuments(ctx context.Context, text string, limit int) ([]knowledge.Document, error)
}

// BusinessRecord is one row of workshop business data, as a loose map.
type BusinessRecord map[string]any

// BusinessStore exposes read-only snapshots of the workshop's own tables.
// Those tables are owned by the website; a missing table is reported as
// domain.ErrNotFound.
type BusinessStore interface {
	ListBusinessRecords(ctx context.Context, table string, limit int) ([]BusinessRecord, error)
	CountBusinessRecords(ctx context.Context, table string, where map[string]any) (int, error)
	// ListOverdueServiceOrders returns open service orders created before cutoff.
	ListOverdueServiceOrders(ctx context.Context, cutoff time.Time, limit int) ([]BusinessRecord, error)
}

// Store is the composite port implemented by the postgres adapter.
type Store interface {
	AgentStore
	TaskStore
	DecisionStore
	LogStore
	KnowledgeStore
	BusinessStore
}

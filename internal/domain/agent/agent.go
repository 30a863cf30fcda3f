// Package agent defines the Agent domain entity.
package agent

import "time"

// Status represents the lifecycle state of an agent.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusPaused  Status = "pausado"
	StatusOffline Status = "offline"
)

// Kind distinguishes the coordinator from the agents it delegates to.
type Kind string

const (
	KindCoordinator Kind = "mae"
	KindPrincess    Kind = "princesa"
	KindWorker      Kind = "escravo"
)

// Agent is a named autonomous worker. Agents are seeded and executed
// outside this service; here they are only read and annotated.
type Agent struct {
	ID          string         `json:"id"`
	Name        string         `json:"nome"`
	Kind        Kind           `json:"tipo"`
	Status      Status         `json:"status"`
	Description string         `json:"descricao,omitempty"`
	LLMProvider string         `json:"llm_provider,omitempty"`
	Model       string         `json:"modelo,omitempty"`
	LastPing    *time.Time     `json:"ultimo_ping"`
	ActiveTasks int            `json:"tarefas_ativas"`
	Config      map[string]any `json:"config_json,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Active reports whether the agent is in a non-terminal status.
func (a *Agent) Active() bool {
	return a.Status != StatusOffline
}

// Stale reports whether an online agent's last heartbeat is older than
// cutoff. Agents that never pinged are not considered stale.
func (a *Agent) Stale(cutoff time.Time) bool {
	if a.Status != StatusOnline || a.LastPing == nil {
		return false
	}
	return a.LastPing.Before(cutoff)
}

// WithQueue is an Agent annotated with its live queue length.
type WithQueue struct {
	Agent
	QueueLength int64 `json:"queue_length"`
}

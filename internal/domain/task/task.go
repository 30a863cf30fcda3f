// Package task defines the Task domain entity and the queue envelope
// that hands a task to an agent runtime.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/doctorauto/sophia/internal/domain"
)

// Status represents the current state of a task. Transitions after
// creation are owned by the agent runtime.
type Status string

const (
	StatusPending   Status = "pendente"
	StatusRunning   Status = "rodando"
	StatusCompleted Status = "concluida"
	StatusFailed    Status = "erro"
)

const (
	TypeCommand    = "comando"
	TypeDelegation = "delegacao"
	TypeAlert      = "alerta"
	TypeLead       = "lead"
)

// Priorities run from MinPriority to MaxPriority, higher first.
// DefaultPriority is used when a request does not carry one.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Task is a unit of work owned by exactly one agent.
type Task struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	Title       string         `json:"titulo"`
	Description string         `json:"descricao"`
	Type        string         `json:"tipo"`
	Priority    int            `json:"prioridade"`
	Input       map[string]any `json:"input_json"`
	Status      Status         `json:"status"`
	Result      map[string]any `json:"resultado_json,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at"`
}

// Summary is the compact projection used in agent detail views.
type Summary struct {
	ID          string     `json:"id"`
	Title       string     `json:"titulo"`
	Status      Status     `json:"status"`
	Type        string     `json:"tipo"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// CreateRequest holds the fields accepted by the task and delegate endpoints.
type CreateRequest struct {
	Title       string         `json:"titulo"`
	Description string         `json:"descricao,omitempty"`
	Type        string         `json:"tipo,omitempty"`
	Priority    int            `json:"prioridade,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	AgentID     string         `json:"agent_id,omitempty"`
}

// Validate checks that the request carries a title and, when set, a
// priority within range. Zero means unset.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: titulo is required", domain.ErrValidation)
	}
	if r.Priority != 0 && (r.Priority < MinPriority || r.Priority > MaxPriority) {
		return fmt.Errorf("%w: prioridade must be between %d and %d", domain.ErrValidation, MinPriority, MaxPriority)
	}
	return nil
}

// ApplyDefaults fills the optional fields. defaultType depends on the
// entry point: plain tasks are commands, delegations are delegations.
func (r *CreateRequest) ApplyDefaults(defaultType string) {
	if r.Type == "" {
		r.Type = defaultType
	}
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	if r.Input == nil {
		r.Input = map[string]any{"content": r.Title}
	}
}

// QueueItem is the envelope placed on an agent's work queue. Its ID is
// the ID of the durable task record.
type QueueItem struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Priority  int            `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewQueueItem builds the envelope for a recorded task.
func NewQueueItem(t *Task) QueueItem {
	return QueueItem{
		ID:       t.ID,
		AgentID:  t.AgentID,
		Type:     t.Type,
		Payload:  t.Input,
		Priority: t.Priority,
	}
}

// CountFilter narrows task counts used by metrics and status.
type CountFilter struct {
	Status         Status
	CompletedSince time.Time
}

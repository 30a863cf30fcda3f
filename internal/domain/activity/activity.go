// Package activity defines the append-only audit log entry.
package activity

import "time"

// Level categorizes an audit entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelAction  Level = "action"
	LevelMessage Level = "message"
)

// Entry is an audit record. Entries are never mutated.
type Entry struct {
	ID        string         `json:"id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Level     Level          `json:"tipo"`
	Message   string         `json:"mensagem"`
	Metadata  map[string]any `json:"metadata_json,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

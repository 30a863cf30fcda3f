package service

import (
	"context"
	"log/slog"

	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/port/database"
)

// ActivityLog writes the audit trail and mirrors each entry to slog.
type ActivityLog struct {
	store database.LogStore
}

// NewActivityLog creates an ActivityLog.
func NewActivityLog(store database.LogStore) *ActivityLog {
	return &ActivityLog{store: store}
}

// Record appends an audit entry. A failed write is logged and never
// returned: auditing must not fail the operation being audited.
func (l *ActivityLog) Record(ctx context.Context, agentID string, level activity.Level, message string, metadata map[string]any) {
	slog.Log(ctx, slogLevel(level), message, "agent_id", agentID, "audit", string(level))

	err := l.store.AppendLog(ctx, activity.Entry{
		AgentID:  agentID,
		Level:    level,
		Message:  message,
		Metadata: metadata,
	})
	if err != nil {
		slog.ErrorContext(ctx, "append audit log", "agent_id", agentID, "error", err)
	}
}

func slogLevel(l activity.Level) slog.Level {
	switch l {
	case activity.LevelError:
		return slog.LevelError
	case activity.LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

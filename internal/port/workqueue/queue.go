// Package workqueue defines the per-agent priority work queue port.
package workqueue

import (
	"context"

	"github.com/doctorauto/sophia/internal/domain/task"
)

// Queue hands work items to a specific agent runtime. Items with a higher
// priority are dequeued first; equal priorities are served in arrival order.
type Queue interface {
	Enqueue(ctx context.Context, item task.QueueItem) error
	// Dequeue removes and returns the next item, or nil when the queue is empty.
	Dequeue(ctx context.Context, agentID string) (*task.QueueItem, error)
	Len(ctx context.Context, agentID string) (int64, error)
}

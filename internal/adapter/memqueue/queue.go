// Package memqueue is an in-process implementation of the work queue port,
// used for development and tests. Contents do not survive a restart.
package memqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/doctorauto/sophia/internal/domain/task"
)

type entry struct {
	item task.QueueItem
	seq  uint64
}

// agentHeap orders by priority descending, then by arrival.
type agentHeap []entry

func (h agentHeap) Len() int { return len(h) }
func (h agentHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}
func (h agentHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *agentHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *agentHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue holds one heap per agent.
type Queue struct {
	mu     sync.Mutex
	seq    uint64
	queues map[string]*agentHeap
	now    func() time.Time
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{queues: make(map[string]*agentHeap), now: time.Now}
}

func (q *Queue) Enqueue(_ context.Context, item task.QueueItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = q.now().UTC()
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	h, ok := q.queues[item.AgentID]
	if !ok {
		h = &agentHeap{}
		q.queues[item.AgentID] = h
	}
	q.seq++
	heap.Push(h, entry{item: item, seq: q.seq})
	return nil
}

func (q *Queue) Dequeue(_ context.Context, agentID string) (*task.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	h, ok := q.queues[agentID]
	if !ok || h.Len() == 0 {
		return nil, nil
	}
	e := heap.Pop(h).(entry)
	if h.Len() == 0 {
		delete(q.queues, agentID)
	}
	return &e.item, nil
}

func (q *Queue) Len(_ context.Context, agentID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h, ok := q.queues[agentID]; ok {
		return int64(h.Len()), nil
	}
	return 0, nil
}

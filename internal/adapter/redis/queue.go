package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/task"
)

const (
	queueKeyPrefix = "queue:tasks:"
	queueSeqKey    = "queue:seq"
)

// priorityWeight separates priority bands in the sorted-set score; the
// global sequence number orders items within a band. Scores stay exact
// float64 integers only while priorities are clamped to the task range.
const priorityWeight = 1e12

// enqueueScript assigns the sequence number and inserts in one round trip.
var enqueueScript = goredis.NewScript(`
local seq = redis.call('INCR', KEYS[2])
redis.call('ZADD', KEYS[1], -tonumber(ARGV[1]) * tonumber(ARGV[3]) + seq, ARGV[2])
return seq
`)

// Queue keeps one sorted set per agent. Lower scores pop first.
type Queue struct {
	client *goredis.Client
	now    func() time.Time
}

// NewQueue wraps a connected client.
func NewQueue(client *goredis.Client) *Queue {
	return &Queue{client: client, now: time.Now}
}

func queueKey(agentID string) string { return queueKeyPrefix + agentID }

func (q *Queue) Enqueue(ctx context.Context, item task.QueueItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = q.now().UTC()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	keys := []string{queueKey(item.AgentID), queueSeqKey}
	if err := enqueueScript.Run(ctx, q.client, keys, clampPriority(item.Priority), data, int64(priorityWeight)).Err(); err != nil {
		return fmt.Errorf("%w: enqueue %s: %w", domain.ErrUpstream, item.ID, err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, agentID string) (*task.QueueItem, error) {
	res, err := q.client.ZPopMin(ctx, queueKey(agentID), 1).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: dequeue %s: %w", domain.ErrUpstream, agentID, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	member, ok := res[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected queue member type %T", domain.ErrUpstream, res[0].Member)
	}
	var item task.QueueItem
	if err := json.Unmarshal([]byte(member), &item); err != nil {
		return nil, fmt.Errorf("decode queue item: %w", err)
	}
	return &item, nil
}

func (q *Queue) Len(ctx context.Context, agentID string) (int64, error) {
	n, err := q.client.ZCard(ctx, queueKey(agentID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: queue length %s: %w", domain.ErrUpstream, agentID, err)
	}
	return n, nil
}

func clampPriority(p int) int {
	return min(max(p, task.MinPriority), task.MaxPriority)
}

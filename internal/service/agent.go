package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/workqueue"
)

const (
	detailTaskLimit = 10
	detailLogLimit  = 10
	queueLookups    = 8
)

// AgentDetail is one agent with its recent history.
type AgentDetail struct {
	Agent       *agent.Agent     `json:"agent"`
	RecentTasks []task.Summary   `json:"recent_tasks"`
	RecentLogs  []activity.Entry `json:"recent_logs"`
	QueueLength int64            `json:"queue_length"`
}

// AgentService reads the agent registry and annotates it with queue depth.
type AgentService struct {
	store database.Store
	queue workqueue.Queue
}

// NewAgentService creates an AgentService.
func NewAgentService(store database.Store, queue workqueue.Queue) *AgentService {
	return &AgentService{store: store, queue: queue}
}

// ListActive returns active agents with their live queue length. A failed
// lookup degrades that agent's length to 0 and never fails the listing.
func (s *AgentService) ListActive(ctx context.Context) ([]agent.WithQueue, error) {
	agents, err := s.store.ListActiveAgents(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]agent.WithQueue, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queueLookups)
	for i := range agents {
		out[i].Agent = agents[i]
		g.Go(func() error {
			out[i].QueueLength = s.queueLength(gctx, agents[i].ID)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Detail returns one agent with its last tasks and log entries.
func (s *AgentService) Detail(ctx context.Context, id string) (*AgentDetail, error) {
	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &AgentDetail{Agent: a}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.RecentTasks, err = s.store.ListRecentTasks(gctx, id, detailTaskLimit)
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentLogs, err = s.store.ListRecentLogs(gctx, id, detailLogLimit)
		return err
	})
	g.Go(func() error {
		d.QueueLength = s.queueLength(gctx, id)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if d.RecentTasks == nil {
		d.RecentTasks = []task.Summary{}
	}
	if d.RecentLogs == nil {
		d.RecentLogs = []activity.Entry{}
	}
	return d, nil
}

func (s *AgentService) queueLength(ctx context.Context, agentID string) int64 {
	n, err := s.queue.Len(ctx, agentID)
	if err != nil {
		slog.WarnContext(ctx, "queue length unavailable", "agent_id", agentID, "error", err)
		return 0
	}
	return n
}

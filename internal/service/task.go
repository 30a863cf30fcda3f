package service

import (
	"context"
	"fmt"
	"log/slog"

	sotel "github.com/doctorauto/sophia/internal/adapter/otel"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/broadcast"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
	"github.com/doctorauto/sophia/internal/port/workqueue"
)

// TaskService is the single path through which tasks are created and
// delegated. A task is recorded first and only then placed on the owning
// agent's queue; coordinator tasks are never queued.
type TaskService struct {
	store   database.Store
	queue   workqueue.Queue
	coord   *CoordinatorResolver
	audit   *ActivityLog
	events  *Events
	metrics *sotel.Metrics
}

// NewTaskService creates a TaskService.
func NewTaskService(store database.Store, queue workqueue.Queue, coord *CoordinatorResolver, audit *ActivityLog) *TaskService {
	return &TaskService{store: store, queue: queue, coord: coord, audit: audit}
}

// SetEvents attaches the event emitter.
func (s *TaskService) SetEvents(e *Events) { s.events = e }

// SetMetrics attaches the OpenTelemetry counters.
func (s *TaskService) SetMetrics(m *sotel.Metrics) { s.metrics = m }

// Create records a task. Without an agent id, or with the coordinator's,
// the task belongs to the coordinator and is not queued. Otherwise it is
// recorded for that agent and enqueued with the same id.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.ApplyDefaults(task.TypeCommand)

	coord, err := s.coord.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	owner := req.AgentID
	if owner == "" {
		owner = coord.ID
	}
	t, err := s.dispatch(ctx, owner, req, owner != coord.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, coord.ID, activity.LevelAction, fmt.Sprintf("Tarefa criada: %s", t.Title),
		map[string]any{"task_id": t.ID, "agent_id": owner})
	return t, nil
}

// Delegate assigns a task to an existing agent and audits the hand-off.
func (s *TaskService) Delegate(ctx context.Context, agentID string, req task.CreateRequest) (*task.Task, *agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	req.ApplyDefaults(task.TypeDelegation)

	target, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	coord, err := s.coord.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}

	t, err := s.dispatch(ctx, target.ID, req, target.ID != coord.ID)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, coord.ID, activity.LevelAction,
		fmt.Sprintf("%s delegou para %s: %s", coord.Name, target.Name, t.Title),
		map[string]any{"task_id": t.ID, "delegate_id": target.ID})
	s.events.Emit(ctx, messagequeue.SubjectTaskDelegated, "", t)
	return t, target, nil
}

// dispatch records the task for agentID and, when queued, enqueues it.
// A failed enqueue after a successful record is logged, counted and
// tolerated: the durable record stays authoritative.
func (s *TaskService) dispatch(ctx context.Context, agentID string, req task.CreateRequest, queued bool) (_ *task.Task, err error) {
	ctx, span := sotel.StartDispatchSpan(ctx, agentID, req.Type)
	defer func() { sotel.EndSpan(span, err) }()

	t, err := s.store.CreateTask(ctx, agentID, req)
	if err != nil {
		return nil, err
	}

	if queued {
		if qerr := s.queue.Enqueue(ctx, task.NewQueueItem(t)); qerr != nil {
			slog.ErrorContext(ctx, "task recorded but not enqueued", "task_id", t.ID, "agent_id", agentID, "error", qerr)
			s.metrics.EnqueueFailed(ctx, agentID)
			queued = false
		}
	}

	s.metrics.TaskCreated(ctx, t.Type, queued)
	s.events.Emit(ctx, messagequeue.SubjectTaskCreated, broadcast.EventTaskCreated, t)
	return t, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/database"
)

// ServiceName is reported by the health check.
const ServiceName = "sophia-worker"

const statusActivityLimit = 5

// Health is the liveness report of the worker and its coordinator.
type Health struct {
	Status      string     `json:"status"`
	Service     string     `json:"service"`
	AgentID     string     `json:"agent_id"`
	AgentStatus string     `json:"agent_status"`
	LastPing    *time.Time `json:"last_ping"`
	Uptime      float64    `json:"uptime"`
}

// SystemStatus is the dashboard overview.
type SystemStatus struct {
	CoordinatorID    string           `json:"sophia_id"`
	Agents           []agent.Agent    `json:"agents"`
	PendingTasks     int              `json:"pending_tasks"`
	PendingDecisions int              `json:"pending_decisions"`
	RecentActivity   []activity.Entry `json:"recent_activity"`
	Uptime           float64          `json:"uptime"`
}

// StatusService reports health and an overview of the system.
type StatusService struct {
	store   database.Store
	coord   *CoordinatorResolver
	started time.Time
}

// NewStatusService creates a StatusService; uptime counts from now.
func NewStatusService(store database.Store, coord *CoordinatorResolver) *StatusService {
	return &StatusService{store: store, coord: coord, started: time.Now()}
}

// Uptime returns the seconds since the service started.
func (s *StatusService) Uptime() float64 {
	return time.Since(s.started).Seconds()
}

// Health reads the coordinator's current status and heartbeat.
func (s *StatusService) Health(ctx context.Context) (*Health, error) {
	id, err := s.coord.ID(ctx)
	if err != nil {
		return nil, err
	}
	h := &Health{Status: "ok", Service: ServiceName, AgentID: id, AgentStatus: "unknown", Uptime: s.Uptime()}

	a, err := s.store.GetAgent(ctx, id)
	switch {
	case err == nil:
		h.AgentStatus = string(a.Status)
		h.LastPing = a.LastPing
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return h, nil
}

// Status gathers the overview concurrently.
func (s *StatusService) Status(ctx context.Context) (*SystemStatus, error) {
	id, err := s.coord.ID(ctx)
	if err != nil {
		return nil, err
	}
	st := &SystemStatus{CoordinatorID: id}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Agents, err = s.store.ListActiveAgents(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.PendingTasks, err = s.store.CountTasks(gctx, task.CountFilter{Status: task.StatusPending})
		return err
	})
	g.Go(func() (err error) {
		st.PendingDecisions, err = s.store.CountDecisions(gctx, decision.StatusPending)
		return err
	})
	g.Go(func() (err error) {
		st.RecentActivity, err = s.store.ListRecentLogs(gctx, "", statusActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if st.Agents == nil {
		st.Agents = []agent.Agent{}
	}
	if st.RecentActivity == nil {
		st.RecentActivity = []activity.Entry{}
	}
	st.Uptime = s.Uptime()
	return st, nil
}

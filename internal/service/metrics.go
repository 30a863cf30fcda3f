package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/metrics"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/broadcast"
	"github.com/doctorauto/sophia/internal/port/cache"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
)

// MetricsService collects the quick-metrics snapshot and serves it from
// the cache.
type MetricsService struct {
	store  database.Store
	cache  cache.Cache
	ttl    time.Duration
	events *Events
	now    func() time.Time
}

// NewMetricsService creates a MetricsService. Snapshots live for ttl.
func NewMetricsService(store database.Store, c cache.Cache, ttl time.Duration) *MetricsService {
	return &MetricsService{store: store, cache: c, ttl: ttl, now: time.Now}
}

// SetEvents attaches the event emitter.
func (s *MetricsService) SetEvents(e *Events) { s.events = e }

// Quick returns the cached snapshot, or the waiting placeholder when none
// is cached or the cache cannot be read.
func (s *MetricsService) Quick(ctx context.Context) any {
	var snap metrics.Snapshot
	found, err := cache.GetJSON(ctx, s.cache, metrics.CacheKey, &snap)
	if err != nil {
		slog.WarnContext(ctx, "read metrics snapshot", "error", err)
	}
	if !found {
		return metrics.WaitingPlaceholder
	}
	return snap
}

// Collect counts the current state, caches it and announces it.
func (s *MetricsService) Collect(ctx context.Context) (*metrics.Snapshot, error) {
	now := s.now()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	snap := &metrics.Snapshot{CollectedAt: now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agents, err := s.store.ListActiveAgents(gctx)
		for _, a := range agents {
			if a.Status == agent.StatusOnline {
				snap.AgentsOnline++
			}
		}
		return err
	})
	g.Go(func() (err error) {
		snap.TasksPending, err = s.store.CountTasks(gctx, task.CountFilter{Status: task.StatusPending})
		return err
	})
	g.Go(func() (err error) {
		snap.TasksCompletedToday, err = s.store.CountTasks(gctx, task.CountFilter{Status: task.StatusCompleted, CompletedSince: today})
		return err
	})
	g.Go(func() (err error) {
		snap.DecisionsPending, err = s.store.CountDecisions(gctx, decision.StatusPending)
		return err
	})
	g.Go(func() (err error) {
		snap.Errors24h, err = s.store.CountLogs(gctx, activity.LevelError, now.Add(-24*time.Hour))
		return err
	})
	g.Go(func() error {
		snap.OpenServiceOrders = s.businessCount(gctx, "ordens_servico", map[string]any{"status": "aberta"})
		return nil
	})
	g.Go(func() error {
		snap.TotalClients = s.businessCount(gctx, "clientes", nil)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, metrics.CacheKey, snap, s.ttl); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, messagequeue.SubjectMetricsUpdate, broadcast.EventMetricsUpdate, snap)
	return snap, nil
}

// businessCount returns nil when the business table is unavailable.
func (s *MetricsService) businessCount(ctx context.Context, table string, where map[string]any) *int {
	n, err := s.store.CountBusinessRecords(ctx, table, where)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.WarnContext(ctx, "business count", "table", table, "error", err)
		}
		return nil
	}
	return &n
}

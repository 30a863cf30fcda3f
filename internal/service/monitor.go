package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doctorauto/sophia/internal/config"
	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/broadcast"
	"github.com/doctorauto/sophia/internal/port/cache"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
)

const (
	// OverdueOrdersKey holds the latest overdue service order alert.
	OverdueOrdersKey = "alerts:os-atrasadas"

	overdueOrdersTTL   = 15 * time.Minute
	overdueOrdersLimit = 50
	alertPriority      = 8
)

// OverdueOrders is the cached open service order alert.
type OverdueOrders struct {
	Count     int                       `json:"count"`
	Orders    []database.BusinessRecord `json:"orders"`
	CheckedAt time.Time                 `json:"checked_at"`
}

// Monitor holds the background jobs that keep the system healthy.
type Monitor struct {
	store     database.Store
	cache     cache.Cache
	coord     *CoordinatorResolver
	audit     *ActivityLog
	tasks     *TaskService
	knowledge *KnowledgeService
	metrics   *MetricsService
	events    *Events
	cfg       config.Cron
	now       func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(
	store database.Store,
	c cache.Cache,
	coord *CoordinatorResolver,
	audit *ActivityLog,
	tasks *TaskService,
	kb *KnowledgeService,
	ms *MetricsService,
	cfg config.Cron,
) *Monitor {
	return &Monitor{
		store: store, cache: c, coord: coord, audit: audit,
		tasks: tasks, knowledge: kb, metrics: ms, cfg: cfg, now: time.Now,
	}
}

// SetEvents attaches the event emitter.
func (m *Monitor) SetEvents(e *Events) { m.events = e }

// Jobs returns the schedule built from the cron configuration.
func (m *Monitor) Jobs() []Job {
	return []Job{
		{Name: "heartbeat", Interval: m.cfg.HeartbeatInterval, Immediate: true, Run: m.Heartbeat},
		{Name: "quick-metrics", Interval: m.cfg.MetricsInterval, Run: m.CollectMetrics},
		{Name: "sync-knowledge", Interval: m.cfg.SyncInterval, Run: m.SyncKnowledge},
		{Name: "monitor-anomalies", Interval: m.cfg.AnomalyInterval, Run: m.DetectAnomalies},
		{Name: "monitor-open-orders", Interval: m.cfg.OpenOrderInterval, Run: m.CheckOpenOrders},
	}
}

// Heartbeat marks the coordinator online and stamps its ping.
func (m *Monitor) Heartbeat(ctx context.Context) error {
	id, err := m.coord.ID(ctx)
	if err != nil {
		return err
	}
	return m.store.TouchAgent(ctx, id, agent.StatusOnline)
}

// CollectMetrics refreshes the quick-metrics snapshot.
func (m *Monitor) CollectMetrics(ctx context.Context) error {
	_, err := m.metrics.Collect(ctx)
	return err
}

// SyncKnowledge indexes the business tables.
func (m *Monitor) SyncKnowledge(ctx context.Context) error {
	id, err := m.coord.ID(ctx)
	if err != nil {
		return err
	}
	_, err = m.knowledge.SyncBusinessData(ctx, id)
	return err
}

// DetectAnomalies takes silent agents offline, fails stuck tasks and
// checks the error rate. Any finding becomes an alert task for the
// coordinator.
func (m *Monitor) DetectAnomalies(ctx context.Context) error {
	now := m.now()
	var alerts []string

	stale, err := m.store.MarkStaleAgentsOffline(ctx, now.Add(-m.cfg.StaleAgentAfter))
	if err != nil {
		return err
	}
	for _, name := range stale {
		alerts = append(alerts, fmt.Sprintf("Agente %s sem ping ha mais de %s, marcado offline", name, m.cfg.StaleAgentAfter))
	}

	stuck, err := m.store.FailStuckTasks(ctx, now.Add(-m.cfg.StuckTaskAfter))
	if err != nil {
		return err
	}
	if stuck > 0 {
		alerts = append(alerts, fmt.Sprintf("%d tarefa(s) travada(s) ha mais de %s marcada(s) com erro", stuck, m.cfg.StuckTaskAfter))
	}

	errs, err := m.store.CountLogs(ctx, activity.LevelError, now.Add(-time.Hour))
	if err != nil {
		return err
	}
	if errs > m.cfg.ErrorThreshold {
		alerts = append(alerts, fmt.Sprintf("Alto volume de erros: %d erros na ultima hora", errs))
	}

	if len(alerts) == 0 {
		return nil
	}
	return m.raiseAlerts(ctx, alerts)
}

func (m *Monitor) raiseAlerts(ctx context.Context, alerts []string) error {
	coordID, err := m.coord.ID(ctx)
	if err != nil {
		return err
	}
	text := strings.Join(alerts, "\n")

	m.audit.Record(ctx, coordID, activity.LevelWarn,
		fmt.Sprintf("[MONITOR] %d anomalias detectadas", len(alerts)), map[string]any{"alerts": alerts})
	m.events.Emit(ctx, messagequeue.SubjectAnomaliesDetected, broadcast.EventAnomaly, map[string]any{"alerts": alerts})

	_, err = m.tasks.Create(ctx, task.CreateRequest{
		Title:       fmt.Sprintf("[ALERTA] %d anomalia(s) detectada(s)", len(alerts)),
		Description: text,
		Type:        task.TypeAlert,
		Priority:    alertPriority,
		Input: map[string]any{
			"content": "Anomalias detectadas pelo monitor:\n\n" + text + "\n\nAnalise e sugira acoes.",
			"alerts":  alerts,
		},
	})
	return err
}

// CheckOpenOrders caches service orders left open past the threshold.
// Without the business table there is nothing to check.
func (m *Monitor) CheckOpenOrders(ctx context.Context) error {
	now := m.now()
	orders, err := m.store.ListOverdueServiceOrders(ctx, now.Add(-m.cfg.OverdueOrderAfter), overdueOrdersLimit)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return m.cache.Delete(ctx, OverdueOrdersKey)
	}

	coordID, err := m.coord.ID(ctx)
	if err != nil {
		return err
	}
	m.audit.Record(ctx, coordID, activity.LevelWarn,
		fmt.Sprintf("[MONITOR] %d OS abertas ha mais de %s", len(orders), m.cfg.OverdueOrderAfter), nil)
	return cache.SetJSON(ctx, m.cache, OverdueOrdersKey,
		OverdueOrders{Count: len(orders), Orders: orders, CheckedAt: now}, overdueOrdersTTL)
}

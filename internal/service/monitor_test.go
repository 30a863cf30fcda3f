package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doctorauto/sophia/internal/config"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/cache"
	"github.com/doctorauto/sophia/internal/port/database"
)

func newMonitor(f *fixture) *Monitor {
	ms := NewMetricsService(f.store, f.cache, time.Minute)
	m := NewMonitor(f.store, f.cache, f.coord, f.audit, f.tasks, f.knowledge, ms, config.Defaults().Cron)
	m.SetEvents(f.events)
	return m
}

func TestMonitorHeartbeat(t *testing.T) {
	f := newFixture()
	f.store.agents[0].Status = agent.StatusIdle

	if err := newMonitor(f).Heartbeat(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.store.agents[0].Status != agent.StatusOnline || len(f.store.touched) != 1 {
		t.Errorf("expected coordinator touched online, got %+v", f.store.agents[0])
	}
}

func TestMonitorNoAnomalies(t *testing.T) {
	f := newFixture()
	if err := newMonitor(f).DetectAnomalies(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.store.tasks) != 0 || len(f.store.logs) != 0 {
		t.Error("a healthy system must not raise alerts")
	}
}

func TestMonitorDetectsAnomalies(t *testing.T) {
	f := newFixture()
	m := newMonitor(f)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	f.store.agents[1].LastPing = &old
	f.store.tasks = append(f.store.tasks, task.Task{ID: "stuck", AgentID: brunoID, Status: task.StatusRunning, StartedAt: &old})
	for range m.cfg.ErrorThreshold + 1 {
		f.audit.Record(ctx, brunoID, activity.LevelError, "falha", nil)
	}

	if err := m.DetectAnomalies(ctx); err != nil {
		t.Fatal(err)
	}

	if f.store.agents[1].Status != agent.StatusOffline {
		t.Error("stale agent must be marked offline")
	}
	if f.store.tasks[0].Status != task.StatusFailed {
		t.Error("stuck task must be marked failed")
	}

	alert := f.store.tasks[len(f.store.tasks)-1]
	if alert.Title != "[ALERTA] 3 anomalia(s) detectada(s)" || alert.Priority != alertPriority || alert.AgentID != sophiaID {
		t.Errorf("unexpected alert task %+v", alert)
	}
	if !strings.Contains(alert.Description, "Anna") {
		t.Errorf("alert must name the stale agent: %q", alert.Description)
	}
	if !strings.Contains(strings.Join(f.store.logMessages(), "\n"), "[MONITOR] 3 anomalias detectadas") {
		t.Error("expected monitor warn entry")
	}
}

func TestMonitorOpenOrders(t *testing.T) {
	f := newFixture()
	m := newMonitor(f)
	ctx := context.Background()

	if err := m.CheckOpenOrders(ctx); err != nil {
		t.Fatalf("missing table must be tolerated: %v", err)
	}

	f.store.business["ordens_servico"] = []database.BusinessRecord{
		{"numero": "OS-1", "status": "aberta", "created_at": time.Now().Add(-96 * time.Hour)},
		{"numero": "OS-2", "status": "aberta", "created_at": time.Now()},
		{"numero": "OS-3", "status": "fechada", "created_at": time.Now().Add(-96 * time.Hour)},
	}
	if err := m.CheckOpenOrders(ctx); err != nil {
		t.Fatal(err)
	}

	var alert OverdueOrders
	found, err := cache.GetJSON(ctx, f.cache, OverdueOrdersKey, &alert)
	if err != nil || !found {
		t.Fatalf("expected cached alert, found=%v err=%v", found, err)
	}
	if alert.Count != 1 || alert.Orders[0]["numero"] != "OS-1" {
		t.Errorf("unexpected alert %+v", alert)
	}
}

func TestMonitorJobsKeepAuditTrail(t *testing.T) {
	f := newFixture()
	m := newMonitor(f)
	old := time.Now().Add(-60 * 24 * time.Hour)
	f.store.logs = []activity.Entry{
		{Level: activity.LevelAction, Message: "Tarefa delegada para Anna", CreatedAt: old},
		{Level: activity.LevelAction, Message: "Decisao aprovada", CreatedAt: old},
		{Level: activity.LevelInfo, Message: "[WEBHOOK] Nova OS: 1", CreatedAt: old},
		{Level: activity.LevelMessage, Message: "oi", CreatedAt: old},
	}

	for _, j := range m.Jobs() {
		// Some jobs fail on an empty business store; only the trail matters here.
		_ = j.Run(context.Background())
	}

	msgs := strings.Join(f.store.logMessages(), "|")
	for _, e := range []string{"Tarefa delegada para Anna", "Decisao aprovada", "[WEBHOOK] Nova OS: 1", "oi"} {
		if !strings.Contains(msgs, e) {
			t.Errorf("expected %q to survive the scheduled jobs, got %s", e, msgs)
		}
	}
}

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	var immediate, delayed atomic.Int32
	s := NewScheduler(time.Hour,
		Job{Name: "immediate", Interval: 10 * time.Millisecond, Immediate: true, Run: func(context.Context) error {
			immediate.Add(1)
			return nil
		}},
		Job{Name: "delayed", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			delayed.Add(1)
			return nil
		}},
		Job{Name: "disabled", Interval: 0, Run: func(context.Context) error {
			t.Error("disabled job must not run")
			return nil
		}},
	)
	s.jitter = func(d time.Duration) time.Duration { return d }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for immediate.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	if immediate.Load() < 3 {
		t.Errorf("expected repeated runs, got %d", immediate.Load())
	}
	if delayed.Load() != 0 {
		t.Errorf("delayed job ran before its start delay: %d", delayed.Load())
	}
}

func TestSchedulerSurvivesFailingJob(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(0, Job{Name: "flaky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return context.DeadlineExceeded
	}})
	s.jitter = func(time.Duration) time.Duration { return 0 }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if runs.Load() < 2 {
		t.Errorf("expected retries after failure, got %d runs", runs.Load())
	}
}

func TestMonitorJobsCoverSchedule(t *testing.T) {
	jobs := newMonitor(newFixture()).Jobs()
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
		if j.Interval <= 0 {
			t.Errorf("job %s has no default interval", j.Name)
		}
	}
	want := "heartbeat,quick-metrics,sync-knowledge,monitor-anomalies,monitor-open-orders"
	if strings.Join(names, ",") != want {
		t.Errorf("expected %s, got %v", want, names)
	}
}

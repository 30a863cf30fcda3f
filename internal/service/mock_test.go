package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/llm"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
)

// memStore is an in-memory database.Store.
type memStore struct {
	mu        sync.Mutex
	agents    []agent.Agent
	tasks     []task.Task
	decisions []decision.Decision
	logs      []activity.Entry
	docs      []knowledge.Document
	business  map[string][]database.BusinessRecord
	nameCalls int

	createTaskErr error
	listAgentsErr error
	touched       []string
}

var _ database.Store = (*memStore)(nil)

func newMemStore(agents ...agent.Agent) *memStore {
	return &memStore{agents: agents, business: map[string][]database.BusinessRecord{}}
}

func (m *memStore) ListActiveAgents(_ context.Context) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listAgentsErr != nil {
		return nil, m.listAgentsErr
	}
	var out []agent.Agent
	for _, a := range m.agents {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			a := m.agents[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
}

func (m *memStore) GetAgentByName(_ context.Context, name string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nameCalls++
	for i := range m.agents {
		if m.agents[i].Name == name {
			a := m.agents[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", name, domain.ErrNotFound)
}

func (m *memStore) TouchAgent(_ context.Context, id string, status agent.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			now := time.Now()
			m.agents[i].Status = status
			m.agents[i].LastPing = &now
			m.touched = append(m.touched, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) MarkStaleAgentsOffline(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for i := range m.agents {
		if m.agents[i].Stale(cutoff) {
			m.agents[i].Status = agent.StatusOffline
			names = append(names, m.agents[i].Name)
		}
	}
	return names, nil
}

func (m *memStore) CreateTask(_ context.Context, agentID string, req task.CreateRequest) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createTaskErr != nil {
		return nil, m.createTaskErr
	}
	known := false
	for _, a := range m.agents {
		known = known || a.ID == agentID
	}
	if !known {
		return nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	t := task.Task{
		ID: uuid.NewString(), AgentID: agentID, Title: req.Title, Description: req.Description,
		Type: req.Type, Priority: req.Priority, Input: req.Input, Status: task.StatusPending, CreatedAt: time.Now(),
	}
	m.tasks = append(m.tasks, t)
	return &t, nil
}

func (m *memStore) ListRecentTasks(_ context.Context, agentID string, limit int) ([]task.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Summary
	for i := len(m.tasks) - 1; i >= 0 && len(out) < limit; i-- {
		if t := m.tasks[i]; t.AgentID == agentID {
			out = append(out, task.Summary{ID: t.ID, Title: t.Title, Status: t.Status, Type: t.Type, CreatedAt: t.CreatedAt})
		}
	}
	return out, nil
}

func (m *memStore) CountTasks(_ context.Context, f task.CountFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if !f.CompletedSince.IsZero() && (t.CompletedAt == nil || t.CompletedAt.Before(f.CompletedSince)) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memStore) FailStuckTasks(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.tasks {
		t := &m.tasks[i]
		if t.Status == task.StatusRunning && t.StartedAt != nil && t.StartedAt.Before(cutoff) {
			t.Status = task.StatusFailed
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateDecision(_ context.Context, req decision.CreateRequest) (*decision.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := decision.Decision{
		ID: uuid.NewString(), Type: req.Type, Context: req.Context, Proposal: req.Proposal,
		Status: req.Status, CreatedAt: time.Now(),
	}
	m.decisions = append(m.decisions, d)
	return &d, nil
}

func (m *memStore) GetDecision(_ context.Context, id string) (*decision.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.decisions {
		if m.decisions[i].ID == id {
			d := m.decisions[i]
			return &d, nil
		}
	}
	return nil, fmt.Errorf("decision %s: %w", id, domain.ErrNotFound)
}

func (m *memStore) SetDecisionStatus(_ context.Context, id string, status decision.Status, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.decisions {
		d := &m.decisions[i]
		if d.ID != id {
			continue
		}
		if d.Status.Terminal() {
			return domain.ErrConflict
		}
		d.Status, d.Result = status, result
		return nil
	}
	return domain.ErrNotFound
}

func (m *memStore) ListDecisions(_ context.Context, f decision.ListFilter) ([]decision.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []decision.Decision
	for i := len(m.decisions) - 1; i >= 0 && len(out) < f.Limit; i-- {
		if f.Status == "" || m.decisions[i].Status == f.Status {
			out = append(out, m.decisions[i])
		}
	}
	return out, nil
}

func (m *memStore) CountDecisions(_ context.Context, status decision.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.decisions {
		if d.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memStore) AppendLog(_ context.Context, e activity.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	m.logs = append(m.logs, e)
	return nil
}

func (m *memStore) ListRecentLogs(_ context.Context, agentID string, limit int) ([]activity.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Entry
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if agentID == "" || m.logs[i].AgentID == agentID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

func (m *memStore) CountLogs(_ context.Context, level activity.Level, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.logs {
		if e.Level == level && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateDocument(_ context.Context, req knowledge.IngestRequest) (*knowledge.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := knowledge.Document{
		ID: uuid.NewString(), Category: req.Category, Subcategory: req.Subcategory,
		Title: req.Title, Content: req.Content, Source: req.Source, CreatedAt: time.Now(),
	}
	m.docs = append(m.docs, d)
	return &d, nil
}

func (m *memStore) SearchDocuments(_ context.Context, text string, limit int) ([]knowledge.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(text)
	var out []knowledge.Document
	for i := len(m.docs) - 1; i >= 0 && len(out) < limit; i-- {
		d := m.docs[i]
		if strings.Contains(strings.ToLower(d.Title), needle) || strings.Contains(strings.ToLower(d.Content), needle) ||
			strings.Contains(strings.ToLower(d.Category), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) ListBusinessRecords(_ context.Context, table string, limit int) ([]database.BusinessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.business[table]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memStore) CountBusinessRecords(_ context.Context, table string, where map[string]any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.business[table]
	if !ok {
		return 0, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	}
	n := 0
	for _, r := range rows {
		match := true
		for k, v := range where {
			match = match && r[k] == v
		}
		if match {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListOverdueServiceOrders(_ context.Context, cutoff time.Time, limit int) ([]database.BusinessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.business["ordens_servico"]
	if !ok {
		return nil, fmt.Errorf("table ordens_servico: %w", domain.ErrNotFound)
	}
	var out []database.BusinessRecord
	for _, r := range rows {
		created, _ := r["created_at"].(time.Time)
		if r["status"] == "aberta" && created.Before(cutoff) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) logMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.logs))
	for i, e := range m.logs {
		out[i] = e.Message
	}
	return out
}

// memQueue is a workqueue.Queue that records items per agent.
type memQueue struct {
	mu         sync.Mutex
	items      map[string][]task.QueueItem
	enqueueErr error
	lenErr     map[string]error
}

func newMemQueue() *memQueue {
	return &memQueue{items: map[string][]task.QueueItem{}, lenErr: map[string]error{}}
}

func (q *memQueue) Enqueue(_ context.Context, item task.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.items[item.AgentID] = append(q.items[item.AgentID], item)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context, agentID string) (*task.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[agentID]
	if len(items) == 0 {
		return nil, nil
	}
	it := items[0]
	q.items[agentID] = items[1:]
	return &it, nil
}

func (q *memQueue) Len(_ context.Context, agentID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.lenErr[agentID]; err != nil {
		return 0, err
	}
	return int64(len(q.items[agentID])), nil
}

func (q *memQueue) total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, items := range q.items {
		n += len(items)
	}
	return n
}

// mockBus records published subjects.
type mockBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

var _ messagequeue.Queue = (*mockBus)(nil)

func newMockBus() *mockBus { return &mockBus{published: map[string][][]byte{}} }

func (b *mockBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[subject] = append(b.published[subject], data)
	return nil
}

func (b *mockBus) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (b *mockBus) Drain() error      { return nil }
func (b *mockBus) Close() error      { return nil }
func (b *mockBus) IsConnected() bool { return true }

func (b *mockBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[subject])
}

func (b *mockBus) last(subject string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.published[subject]
	if len(msgs) == 0 {
		return errors.New("nothing published on " + subject)
	}
	return json.Unmarshal(msgs[len(msgs)-1], v)
}

// mockHub records live event types.
type mockHub struct {
	mu    sync.Mutex
	types []string
}

func (h *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, eventType)
}

func (h *mockHub) has(eventType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.types, eventType)
}

// mapCache is an in-memory cache.Cache.
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	gets   int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// mockLLM returns a canned reply and records the prompt.
type mockLLM struct {
	reply    string
	err      error
	messages []llm.Message
}

func (l *mockLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	l.messages = messages
	return l.reply, l.err
}

const (
	sophiaID = "00000000-0000-0000-0000-000000000001"
	annaID   = "00000000-0000-0000-0000-000000000002"
	brunoID  = "00000000-0000-0000-0000-000000000003"
)

// fixture wires the services over in-memory adapters.
type fixture struct {
	store     *memStore
	queue     *memQueue
	bus       *mockBus
	hub       *mockHub
	cache     *mapCache
	coord     *CoordinatorResolver
	audit     *ActivityLog
	events    *Events
	tasks     *TaskService
	decisions *DecisionService
	agents    *AgentService
	knowledge *KnowledgeService
}

func newFixture() *fixture {
	now := time.Now()
	store := newMemStore(
		agent.Agent{ID: sophiaID, Name: "Sophia", Kind: agent.KindCoordinator, Status: agent.StatusOnline, LastPing: &now},
		agent.Agent{ID: annaID, Name: "Anna", Kind: agent.KindPrincess, Status: agent.StatusOnline, LastPing: &now},
		agent.Agent{ID: brunoID, Name: "Bruno", Kind: agent.KindPrincess, Status: agent.StatusIdle},
	)
	f := &fixture{
		store: store,
		queue: newMemQueue(),
		bus:   newMockBus(),
		hub:   &mockHub{},
		cache: newMapCache(),
	}
	f.coord = NewCoordinatorResolver(store, "Sophia", "Athena")
	f.audit = NewActivityLog(store)
	f.events = NewEvents(f.bus, f.hub)
	f.tasks = NewTaskService(store, f.queue, f.coord, f.audit)
	f.tasks.SetEvents(f.events)
	f.decisions = NewDecisionService(store, f.coord, f.audit, decision.ModeSemiAuto)
	f.decisions.SetEvents(f.events)
	f.agents = NewAgentService(store, f.queue)
	f.knowledge = NewKnowledgeService(store, f.cache, time.Minute, f.audit)
	return f
}

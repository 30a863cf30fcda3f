package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/port/database"
)

// Coordinator identifies the distinguished agent that owns undelegated work.
type Coordinator struct {
	ID   string
	Name string
}

// CoordinatorResolver looks the coordinator up by name once and remembers
// it for the process lifetime. Concurrent first calls may each hit the
// store; they converge on the same value. Failures are not remembered.
type CoordinatorResolver struct {
	agents database.AgentStore
	names  []string

	mu     sync.Mutex
	cached *Coordinator
}

// NewCoordinatorResolver tries name first, then each fallback.
func NewCoordinatorResolver(agents database.AgentStore, name string, fallbacks ...string) *CoordinatorResolver {
	names := make([]string, 0, 1+len(fallbacks))
	for _, n := range append([]string{name}, fallbacks...) {
		if n != "" {
			names = append(names, n)
		}
	}
	return &CoordinatorResolver{agents: agents, names: names}
}

// Resolve returns the coordinator, consulting the store only until the
// first success.
func (r *CoordinatorResolver) Resolve(ctx context.Context) (Coordinator, error) {
	r.mu.Lock()
	if r.cached != nil {
		c := *r.cached
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	for _, name := range r.names {
		a, err := r.agents.GetAgentByName(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return Coordinator{}, fmt.Errorf("resolve coordinator: %w", err)
		}
		c := Coordinator{ID: a.ID, Name: a.Name}
		r.mu.Lock()
		r.cached = &c
		r.mu.Unlock()
		return c, nil
	}
	// Upstream, so callers never see a 404 for a route they got right.
	return Coordinator{}, fmt.Errorf("%w: coordinator agent (%s): %w", domain.ErrUpstream, strings.Join(r.names, ", "), domain.ErrNotFound)
}

// ID returns the coordinator's agent id.
func (r *CoordinatorResolver) ID(ctx context.Context) (string, error) {
	c, err := r.Resolve(ctx)
	return c.ID, err
}

// Reset forgets the cached coordinator.
func (r *CoordinatorResolver) Reset() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

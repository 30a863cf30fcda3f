package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/agent"
)

func TestCoordinatorResolverCaches(t *testing.T) {
	store := newMemStore(agent.Agent{ID: sophiaID, Name: "Sophia"})
	r := NewCoordinatorResolver(store, "Sophia", "Athena")

	for range 3 {
		id, err := r.ID(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != sophiaID {
			t.Fatalf("expected %s, got %s", sophiaID, id)
		}
	}
	if store.nameCalls != 1 {
		t.Errorf("expected one store lookup, got %d", store.nameCalls)
	}

	r.Reset()
	if _, err := r.ID(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.nameCalls != 2 {
		t.Errorf("expected lookup after reset, got %d calls", store.nameCalls)
	}
}

func TestCoordinatorResolverFallback(t *testing.T) {
	store := newMemStore(agent.Agent{ID: "athena-id", Name: "Athena"})
	r := NewCoordinatorResolver(store, "Sophia", "Athena")

	c, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "athena-id" || c.Name != "Athena" {
		t.Errorf("expected fallback coordinator, got %+v", c)
	}
}

func TestCoordinatorResolverNotFoundIsNotCached(t *testing.T) {
	store := newMemStore()
	r := NewCoordinatorResolver(store, "Sophia", "Athena")

	_, err := r.ID(context.Background())
	if !errors.Is(err, domain.ErrNotFound) || !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream wrapping ErrNotFound, got %v", err)
	}

	store.agents = append(store.agents, agent.Agent{ID: sophiaID, Name: "Sophia"})
	id, err := r.ID(context.Background())
	if err != nil || id != sophiaID {
		t.Fatalf("expected resolution after seeding, got %q %v", id, err)
	}
}

func TestCoordinatorResolverConcurrentFirstCalls(t *testing.T) {
	store := newMemStore(agent.Agent{ID: sophiaID, Name: "Sophia"})
	r := NewCoordinatorResolver(store, "Sophia")

	var wg sync.WaitGroup
	ids := make([]string, 32)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], _ = r.ID(context.Background())
		}()
	}
	wg.Wait()

	for i, id := range ids {
		if id != sophiaID {
			t.Fatalf("call %d: expected %s, got %q", i, sophiaID, id)
		}
	}
}

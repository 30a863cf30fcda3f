package tiered_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/doctorauto/sophia/internal/adapter/tiered"
	"github.com/doctorauto/sophia/internal/port/cache/cachetest"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestTieredContract(t *testing.T) {
	cachetest.Run(t, tiered.New(newMemCache(), newMemCache(), time.Minute))
}

func TestTiered_L2HitBackfillsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	l2.data["metrics:quick"] = []byte("snap")

	val, found, err := c.Get(context.Background(), "metrics:quick")
	if err != nil || !found {
		t.Fatalf("expected L2 hit, found=%v err=%v", found, err)
	}
	if string(val) != "snap" {
		t.Fatalf("expected snap, got %s", val)
	}
	if string(l1.data["metrics:quick"]) != "snap" {
		t.Fatal("expected L1 backfill")
	}
}

func TestTiered_L2FailureDegradesToL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errors.New("redis down")
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set must tolerate L2 failure: %v", err)
	}
	val, found, err := c.Get(ctx, "k")
	if err != nil || !found || string(val) != "v" {
		t.Fatalf("expected L1 value, got %q found=%v err=%v", val, found, err)
	}
	if _, found, err := c.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}
}

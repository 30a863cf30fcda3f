// Package cachetest holds a behavior suite shared by cache adapters.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/doctorauto/sophia/internal/port/cache"
)

// Run exercises the cache.Cache contract against c.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "metrics:quick", []byte(`{"agents_online":3}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "metrics:quick")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"agents_online":3}` {
			t.Fatalf("unexpected value %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "never:set")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "ow", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "ow", []byte("v2"), time.Minute)
		val, _, err := c.Get(ctx, "ow")
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2, got %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del", []byte("x"), time.Minute)
		if err := c.Delete(ctx, "del"); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := c.Get(ctx, "del"); found {
			t.Fatal("expected miss after Delete")
		}
		if err := c.Delete(ctx, "del"); err != nil {
			t.Fatalf("deleting a missing key must not error: %v", err)
		}
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		type snap struct {
			N int `json:"n"`
		}
		if err := cache.SetJSON(ctx, c, "json:key", snap{N: 7}, time.Minute); err != nil {
			t.Fatal(err)
		}
		var got snap
		found, err := cache.GetJSON(ctx, c, "json:key", &got)
		if err != nil || !found {
			t.Fatalf("GetJSON: found=%v err=%v", found, err)
		}
		if got.N != 7 {
			t.Fatalf("expected 7, got %d", got.N)
		}
	})
}

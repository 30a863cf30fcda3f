package nats

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/doctorauto/sophia/internal/adapter/natskv"
	"github.com/doctorauto/sophia/internal/logger"
	"github.com/doctorauto/sophia/internal/port/cache/cachetest"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
)

var _ messagequeue.Queue = (*Queue)(nil)

func testConnect(t *testing.T) *Queue {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	q, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestQueue_PublishSubscribeCarriesRequestID(t *testing.T) {
	q := testConnect(t)
	subject := "sophia.test." + strings.ReplaceAll(uuid.NewString(), "-", "")

	type got struct {
		data      string
		requestID string
	}
	received := make(chan got, 1)
	cancel, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, data []byte) error {
		received <- got{data: string(data), requestID: logger.RequestID(ctx)}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	ctx := logger.WithRequestID(context.Background(), "req-nats")
	if err := q.Publish(ctx, subject, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case g := <-received:
		if g.data != `{"ok":true}` {
			t.Fatalf("unexpected payload %s", g.data)
		}
		if g.requestID != "req-nats" {
			t.Fatalf("expected request id to propagate, got %q", g.requestID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestQueue_IsConnected(t *testing.T) {
	q := testConnect(t)
	if !q.IsConnected() {
		t.Fatal("expected connected")
	}
}

func TestKVCacheContract(t *testing.T) {
	q := testConnect(t)
	c, err := natskv.Open(context.Background(), q.JetStream(), "SOPHIA_TEST_CACHE", time.Minute)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	cachetest.Run(t, c)
}

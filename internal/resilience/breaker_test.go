package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRemote = errors.New("llm unavailable")

func fail(context.Context) error { return errRemote }
func ok(context.Context) error   { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errRemote) {
			t.Fatalf("call %d: expected remote error, got %v", i, err)
		}
	}
	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestHalfOpenProbe(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)

	now = now.Add(2 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", b.State())
	}

	// failed probe reopens
	_ = b.Execute(ctx, fail)
	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after failed probe, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(3, time.Second)

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, ok)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)

	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestCanceledCallsDoNotTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBreaker(1, time.Minute)

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after caller cancellation, got %s", b.State())
	}
}

func TestHalfOpenAdmitsOneCallAtATime(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	_ = b.Execute(ctx, fail)
	now = now.Add(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second half-open call to be rejected, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("expected in-flight call to pass, got %v", err)
	}
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("expected closed breaker to admit calls, got %v", err)
	}
}

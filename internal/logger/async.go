package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler hands records to a pool of writer goroutines through a
// bounded channel. Records are dropped, and counted, when the channel is full.
type AsyncHandler struct {
	inner  slog.Handler
	shared *asyncShared
}

type asyncShared struct {
	ch      chan asyncRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// asyncRecord keeps the handler that accepted the record so attrs added
// through WithAttrs survive the hop to the worker.
type asyncRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler starts workers draining a channel of chanSize records.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	s := &asyncShared{ch: make(chan asyncRecord, chanSize)}
	for range workers {
		s.wg.Add(1)
		go s.drain()
	}
	return &AsyncHandler{inner: inner, shared: s}
}

func (s *asyncShared) drain() {
	defer s.wg.Done()
	for r := range s.ch {
		_ = r.h.Handle(context.Background(), r.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.shared.ch <- asyncRecord{h: h.inner, rec: rec.Clone()}:
	default:
		h.shared.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), shared: h.shared}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), shared: h.shared}
}

// DroppedCount returns the number of records dropped so far.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.shared.dropped.Load()
}

// Close stops accepting records and waits for queued ones to be written.
// It is safe to call more than once.
func (h *AsyncHandler) Close() {
	h.shared.once.Do(func() {
		close(h.shared.ch)
		h.shared.wg.Wait()
	})
}

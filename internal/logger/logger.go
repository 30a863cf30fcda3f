// Package logger provides structured logging setup for the orchestrator.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/doctorauto/sophia/internal/config"
)

// New creates a JSON logger writing to stdout with a "service" attribute on
// every record and the request id taken from the record's context.
// The returned Closer flushes the async handler when one is configured.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	var (
		h      slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
		closer Closer       = nopCloser{}
	)
	if cfg.Async {
		ah := NewAsyncHandler(h, max(cfg.AsyncBuffer, 1), max(cfg.AsyncWorkers, 1))
		h, closer = ah, ah
	}
	return slog.New(&contextHandler{Handler: h}).With("service", cfg.Service), closer
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorauto/sophia/internal/middleware"
)

// RouteOptions configures the per-route middleware.
type RouteOptions struct {
	RequestTimeout time.Duration
	WebhookToken   string
	// Idempotency replays POST responses keyed by Idempotency-Key; nil disables it.
	Idempotency func(http.Handler) http.Handler
}

// MountRoutes registers the gateway routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	idem := opts.Idempotency
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Group(func(r chi.Router) {
		r.Use(Timeout(opts.RequestTimeout))

		r.Get("/health", h.Health)
		r.Get("/status", h.SystemStatus)
		r.Get("/metrics", h.QuickMetrics)
		r.Post("/chat", h.HandleChat)

		// Tasks and delegation
		r.With(idem).Post("/task", h.CreateTask)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.With(idem).Post("/agents/{id}/delegate", h.DelegateTask)

		// Decision ledger
		r.Get("/decisions", h.ListDecisions)
		r.Post("/decision/{id}/approve", h.ApproveDecision)
		r.Post("/decision/{id}/reject", h.RejectDecision)

		// Knowledge
		r.Post("/knowledge/ingest", h.IngestKnowledge)
		r.Post("/knowledge/query", h.QueryKnowledge)
		r.Post("/sync", h.SyncBusinessData)

		r.With(middleware.WebhookToken(opts.WebhookToken), idem).Post("/webhook", h.ReceiveWebhook)
	})

	// Long-lived connection, outside the request timeout.
	if h.LiveEvents != nil {
		r.Get("/ws", h.LiveEvents)
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint nao encontrado")
}

package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/domain/webhook"
)

type ingestResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type syncResponse struct {
	Synced  int    `json:"synced"`
	Message string `json:"message"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Event    string `json:"event"`
}

// IngestKnowledge handles POST /knowledge/ingest
func (h *Handlers) IngestKnowledge(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[knowledge.IngestRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	doc, err := h.Knowledge.Ingest(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{ID: doc.ID, Message: "Documento ingerido"})
}

// QueryKnowledge handles POST /knowledge/query
func (h *Handlers) QueryKnowledge(w http.ResponseWriter, r *http.Request) {
	q, ok := readJSON[knowledge.Query](w, r, h.bodyLimit())
	if !ok {
		return
	}
	docs, err := h.Knowledge.Query(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": docs})
}

// SyncBusinessData handles POST /sync
func (h *Handlers) SyncBusinessData(w http.ResponseWriter, r *http.Request) {
	coordID, err := h.Coordinator.ID(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	n, err := h.Knowledge.SyncBusinessData(r.Context(), coordID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Synced: n, Message: fmt.Sprintf("%d documentos sincronizados", n)})
}

// ReceiveWebhook handles POST /webhook. A body without a payload object
// is itself treated as the payload.
func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[map[string]any](w, r, h.bodyLimit())
	if !ok {
		return
	}
	name, _ := body["event"].(string)
	if name == "" {
		writeDomainError(w, fmt.Errorf("%w: event is required", domain.ErrValidation))
		return
	}
	payload, isObject := body["payload"].(map[string]any)
	if !isObject {
		payload = body
	}
	ev := webhook.Event{Name: name, Payload: payload, ReceivedAt: time.Now().UTC()}
	if err := h.Webhooks.Handle(r.Context(), ev); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Event: name})
}

// QuickMetrics handles GET /metrics
func (h *Handlers) QuickMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": h.Metrics.Quick(r.Context())})
}

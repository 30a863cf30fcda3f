package http

import (
	"fmt"
	"net/http"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/task"
)

type chatRequest struct {
	Message string `json:"message"`
}

type rejectRequest struct {
	Reason string `json:"motivo"`
}

type taskResponse struct {
	Task *task.Task `json:"task"`
}

type delegateResponse struct {
	Task      *task.Task `json:"task"`
	AgentName string     `json:"agent_name"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.Status.Health(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// SystemStatus handles GET /status
func (h *Handlers) SystemStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Status.Status(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleChat handles POST /chat
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	reply, err := h.Chat.Handle(r.Context(), req.Message)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// CreateTask handles POST /task
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse{Task: t})
}

// DelegateTask handles POST /agents/{id}/delegate
func (h *Handlers) DelegateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	// The path names the target; a body agent_id is ignored.
	req.AgentID = ""
	t, target, err := h.Tasks.Delegate(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, delegateResponse{Task: t, AgentName: target.Name})
}

// ApproveDecision handles POST /decision/{id}/approve
func (h *Handlers) ApproveDecision(w http.ResponseWriter, r *http.Request) {
	if err := h.Decisions.Approve(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Decisao aprovada. Sera executada no proximo ciclo."})
}

// RejectDecision handles POST /decision/{id}/reject
func (h *Handlers) RejectDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[rejectRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if err := h.Decisions.Reject(r.Context(), urlParam(r, "id"), req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Decisao rejeitada."})
}

// ListDecisions handles GET /decisions?status=&limit=
func (h *Handlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	f := decision.ListFilter{
		Status: decision.Status(r.URL.Query().Get("status")),
		Limit:  limit,
	}
	decisions, err := h.Decisions.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if decisions == nil {
		decisions = []decision.Decision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

// ListAgents handles GET /agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Agents.ListActive(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if agents == nil {
		agents = []agent.WithQueue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// GetAgent handles GET /agents/{id}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if id == "" {
		writeDomainError(w, fmt.Errorf("%w: agent id is required", domain.ErrValidation))
		return
	}
	detail, err := h.Agents.Detail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

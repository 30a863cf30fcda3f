package service

import (
	"context"
	"fmt"
	"log/slog"

	sotel "github.com/doctorauto/sophia/internal/adapter/otel"
	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/port/broadcast"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
)

// decisionModeKey overrides the configured mode from the coordinator's
// config_json.
const decisionModeKey = "decision_mode"

// DecisionService runs the human approval ledger. Operators may move a
// decision between approved and rejected freely; once an executor marks
// it executed it is frozen.
type DecisionService struct {
	store   database.Store
	coord   *CoordinatorResolver
	audit   *ActivityLog
	mode    decision.Mode
	events  *Events
	metrics *sotel.Metrics
}

// NewDecisionService creates a DecisionService with the default mode.
func NewDecisionService(store database.Store, coord *CoordinatorResolver, audit *ActivityLog, mode decision.Mode) *DecisionService {
	return &DecisionService{store: store, coord: coord, audit: audit, mode: mode}
}

// SetEvents attaches the event emitter.
func (s *DecisionService) SetEvents(e *Events) { s.events = e }

// SetMetrics attaches the OpenTelemetry counters.
func (s *DecisionService) SetMetrics(m *sotel.Metrics) { s.metrics = m }

// List returns decisions newest first.
func (s *DecisionService) List(ctx context.Context, f decision.ListFilter) ([]decision.Decision, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return s.store.ListDecisions(ctx, f)
}

// Register records a proposed action. In auto mode it enters the ledger
// already approved and the executor is notified at once.
func (s *DecisionService) Register(ctx context.Context, actionType, origin, proposal string) (*decision.Decision, error) {
	coord, err := s.coord.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	status := s.currentMode(ctx, coord.ID).InitialStatus()

	d, err := s.store.CreateDecision(ctx, decision.CreateRequest{
		Type:     actionType,
		Context:  origin,
		Proposal: proposal,
		Status:   status,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, coord.ID, activity.LevelAction,
		fmt.Sprintf("Decisao registrada: %s (%s)", actionType, status),
		map[string]any{"decision_id": d.ID, "action_type": actionType})
	s.metrics.DecisionTransition(ctx, string(status))

	subject := messagequeue.SubjectDecisionCreated
	if status == decision.StatusApproved {
		subject = messagequeue.SubjectDecisionApproved
	}
	s.events.Emit(ctx, subject, broadcast.EventDecisionStatus, d)
	return d, nil
}

// Approve marks a decision approved. Re-approving is not an error.
// Execution happens later in the external executor.
func (s *DecisionService) Approve(ctx context.Context, id string) error {
	return s.transition(ctx, id, decision.StatusApproved, "", messagequeue.SubjectDecisionApproved)
}

// Reject marks a decision rejected with reason, or the default reason.
func (s *DecisionService) Reject(ctx context.Context, id, reason string) error {
	if reason == "" {
		reason = decision.DefaultRejectReason
	}
	return s.transition(ctx, id, decision.StatusRejected, reason, messagequeue.SubjectDecisionRejected)
}

func (s *DecisionService) transition(ctx context.Context, id string, to decision.Status, result, subject string) (err error) {
	ctx, span := sotel.StartDecisionSpan(ctx, id, string(to))
	defer func() { sotel.EndSpan(span, err) }()

	current, err := s.store.GetDecision(ctx, id)
	if err != nil {
		return err
	}
	if !decision.OperatorCanSet(current.Status, to) {
		return fmt.Errorf("decision %s is %s: %w", id, current.Status, domain.ErrConflict)
	}
	// the store re-checks the guard so a concurrent executor write wins
	if err := s.store.SetDecisionStatus(ctx, id, to, result); err != nil {
		return err
	}

	coordID, cerr := s.coord.ID(ctx)
	if cerr != nil {
		slog.WarnContext(ctx, "audit decision without coordinator", "decision_id", id, "error", cerr)
	}
	msg := fmt.Sprintf("Decisao %s: %s", to, id)
	if to == decision.StatusRejected {
		msg += " - " + result
	}
	s.audit.Record(ctx, coordID, activity.LevelAction, msg,
		map[string]any{"decision_id": id, "from": string(current.Status), "to": string(to)})
	s.metrics.DecisionTransition(ctx, string(to))

	payload := map[string]any{"id": id, "status": to, "previous": current.Status, "tipo_decisao": current.Type}
	if result != "" {
		payload["resultado"] = result
	}
	s.events.Emit(ctx, subject, broadcast.EventDecisionStatus, payload)
	return nil
}

// currentMode reads decision_mode from the coordinator's config and falls
// back to the configured mode.
func (s *DecisionService) currentMode(ctx context.Context, coordID string) decision.Mode {
	a, err := s.store.GetAgent(ctx, coordID)
	if err != nil {
		slog.WarnContext(ctx, "read coordinator config", "error", err)
		return s.mode
	}
	if v, ok := a.Config[decisionModeKey].(string); ok {
		switch m := decision.Mode(v); m {
		case decision.ModeAuto, decision.ModeSemiAuto:
			return m
		}
	}
	return s.mode
}

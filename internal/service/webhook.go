package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	sotel "github.com/doctorauto/sophia/internal/adapter/otel"
	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/agent"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/domain/task"
	"github.com/doctorauto/sophia/internal/domain/webhook"
	"github.com/doctorauto/sophia/internal/port/broadcast"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
	"github.com/doctorauto/sophia/internal/port/notifier"
)

const (
	complaintPriority = 9
	leadPriority      = 6
	maxSubjectRunes   = 80
)

// WebhookService turns business events from the website into knowledge,
// tasks and audit entries.
type WebhookService struct {
	agents    database.AgentStore
	tasks     *TaskService
	knowledge *KnowledgeService
	coord     *CoordinatorResolver
	audit     *ActivityLog
	notify    *NotificationService
	leadAgent string
	events    *Events
	metrics   *sotel.Metrics
}

// NewWebhookService creates a WebhookService. New leads go to leadAgent
// while it is online and to the coordinator otherwise.
func NewWebhookService(
	agents database.AgentStore,
	tasks *TaskService,
	kb *KnowledgeService,
	coord *CoordinatorResolver,
	audit *ActivityLog,
	notify *NotificationService,
	leadAgent string,
) *WebhookService {
	return &WebhookService{
		agents:    agents,
		tasks:     tasks,
		knowledge: kb,
		coord:     coord,
		audit:     audit,
		notify:    notify,
		leadAgent: leadAgent,
	}
}

// SetEvents attaches the event emitter.
func (s *WebhookService) SetEvents(e *Events) { s.events = e }

// SetMetrics attaches the OpenTelemetry counters.
func (s *WebhookService) SetMetrics(m *sotel.Metrics) { s.metrics = m }

// Handle validates ev and runs its handler. Unknown events are audited.
func (s *WebhookService) Handle(ctx context.Context, ev webhook.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.metrics.WebhookReceived(ctx, ev.Name)

	coordID, err := s.coord.ID(ctx)
	if err != nil {
		return err
	}

	switch ev.Name {
	case webhook.EventServiceOrderCreated:
		err = s.serviceOrderCreated(ctx, coordID, ev)
	case webhook.EventPaymentReceived:
		s.paymentReceived(ctx, coordID, ev)
	case webhook.EventComplaint:
		err = s.complaint(ctx, coordID, ev)
	case webhook.EventLead:
		err = s.lead(ctx, ev)
	case webhook.EventAppointment:
		s.audit.Record(ctx, coordID, activity.LevelInfo,
			fmt.Sprintf("[WEBHOOK] Agendamento: %s - %s", ev.Field("servico"), ev.Field("data")),
			map[string]any{"payload": ev.Payload})
	default:
		s.audit.Record(ctx, coordID, activity.LevelInfo,
			"[WEBHOOK] Evento: "+ev.Name, map[string]any{"payload": ev.Payload})
	}
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ev.Name, err)
	}

	s.events.Emit(ctx, messagequeue.SubjectWebhookReceived, broadcast.EventWebhookReceived, ev)
	return nil
}

func (s *WebhookService) serviceOrderCreated(ctx context.Context, coordID string, ev webhook.Event) error {
	number := ev.FirstField("numero", "id")
	if _, err := s.knowledge.Ingest(ctx, knowledge.IngestRequest{
		Category:    "operacional",
		Subcategory: "ordem-servico",
		Title:       "OS Criada: " + number,
		Content:     prettyJSON(ev.Payload),
		Source:      "webhook:site",
	}); err != nil {
		return err
	}
	s.audit.Record(ctx, coordID, activity.LevelInfo, "[WEBHOOK] Nova OS: "+number, nil)
	return nil
}

func (s *WebhookService) paymentReceived(ctx context.Context, coordID string, ev webhook.Event) {
	msg := fmt.Sprintf("Pagamento: R$%s - %s", ev.Field("valor"), ev.Field("cliente"))
	s.audit.Record(ctx, coordID, activity.LevelInfo, "[WEBHOOK] "+msg, map[string]any{"payload": ev.Payload})
	s.notify.Notify(ctx, notifier.Notification{
		Title:   "Pagamento recebido",
		Message: msg,
		Level:   "success",
		Source:  ev.Name,
	})
}

func (s *WebhookService) complaint(ctx context.Context, coordID string, ev webhook.Event) error {
	subject := truncateRunes(ev.Field("assunto"), maxSubjectRunes)
	t, err := s.tasks.Create(ctx, task.CreateRequest{
		Title:    "[URGENTE] Reclamacao: " + subject,
		Type:     task.TypeAlert,
		Priority: complaintPriority,
		Input:    withContent("Nova reclamacao recebida:\n", ev.Payload),
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, coordID, activity.LevelWarn, "[WEBHOOK] Reclamacao recebida!",
		map[string]any{"payload": ev.Payload, "task_id": t.ID})
	s.notify.Notify(ctx, notifier.Notification{
		Title:   "Reclamacao recebida",
		Message: subject,
		Level:   "error",
		Source:  ev.Name,
	})
	return nil
}

func (s *WebhookService) lead(ctx context.Context, ev webhook.Event) error {
	name := ev.FirstField("nome", "email")
	if name == "" {
		name = "Sem nome"
	}
	req := task.CreateRequest{
		Title:    "Novo lead: " + name,
		Type:     task.TypeLead,
		Priority: leadPriority,
		Input:    withContent("Qualifique este novo lead:\n", ev.Payload),
	}

	target, err := s.agents.GetAgentByName(ctx, s.leadAgent)
	switch {
	case err == nil && target.Status == agent.StatusOnline:
		_, _, err = s.tasks.Delegate(ctx, target.ID, req)
		return err
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return err
	}
	_, err = s.tasks.Create(ctx, req)
	return err
}

// withContent builds a task input holding a readable content line plus
// the raw payload fields.
func withContent(prefix string, payload map[string]any) map[string]any {
	input := make(map[string]any, len(payload)+1)
	maps.Copy(input, payload)
	input["content"] = prefix + prettyJSON(payload)
	return input
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

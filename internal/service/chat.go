package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/doctorauto/sophia/internal/domain"
	"github.com/doctorauto/sophia/internal/domain/activity"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/domain/knowledge"
	"github.com/doctorauto/sophia/internal/port/database"
	"github.com/doctorauto/sophia/internal/port/llm"
)

const (
	chatKnowledgeLimit = 5
	chatDecisionLimit  = 5
)

const coordinatorPrompt = `Voce e %s, a IA coordenadora da Doctor Auto, rede de oficinas mecanicas premium em Sao Paulo.
Voce recebe comandos do diretor, analisa a situacao com os dados da empresa e coordena os agentes.

Quando decidir agir, inclua na resposta um unico objeto JSON com o campo "action":
{"action":"criar_agente","spec":{"nome":"...","tipo":"escravo","llm_provider":"...","modelo":"...","descricao":"..."}}
{"action":"ajustar_agente","agent_id":"...","changes":{...}}
{"action":"pausar_agente","agent_id":"...","motivo":"..."}
{"action":"eliminar_agente","agent_id":"...","motivo":"..."}
{"action":"analise","conteudo":"..."}

Explique a decisao antes de agir, priorize custo baixo e responda sempre em portugues brasileiro.
Em uma conversa normal, responda sem JSON.`

// actionPattern finds the outermost JSON object carrying an "action" key.
var actionPattern = regexp.MustCompile(`(?s)\{.*"action"\s*:\s*"[^"]+?".*\}`)

// ChatAction is an action proposed by the coordinator in a reply.
type ChatAction struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// ChatReply is the coordinator's answer to an operator message.
type ChatReply struct {
	Message string      `json:"message"`
	Action  *ChatAction `json:"action"`
}

// ChatService answers operator messages through the LLM and registers any
// proposed action on the decision ledger.
type ChatService struct {
	llm       llm.Completer
	store     database.Store
	knowledge *KnowledgeService
	decisions *DecisionService
	coord     *CoordinatorResolver
	audit     *ActivityLog
}

// NewChatService creates a ChatService. A nil completer disables chat.
func NewChatService(
	completer llm.Completer,
	store database.Store,
	kb *KnowledgeService,
	decisions *DecisionService,
	coord *CoordinatorResolver,
	audit *ActivityLog,
) *ChatService {
	return &ChatService{llm: completer, store: store, knowledge: kb, decisions: decisions, coord: coord, audit: audit}
}

// Handle answers message. Context lookups that fail are left out of the
// prompt rather than failing the reply.
func (s *ChatService) Handle(ctx context.Context, message string) (*ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if s.llm == nil {
		return nil, fmt.Errorf("chat responder not configured: %w", domain.ErrUpstream)
	}

	coord, err := s.coord.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	text, err := s.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: s.systemPrompt(ctx, coord.Name, message)},
		{Role: "user", Content: message},
	})
	if err != nil {
		return nil, err
	}

	reply := &ChatReply{Message: text, Action: ExtractAction(text)}
	if reply.Action != nil {
		if _, err := s.decisions.Register(ctx, reply.Action.Type, message, text); err != nil {
			slog.ErrorContext(ctx, "register chat decision", "action", reply.Action.Type, "error", err)
		}
	}

	var actionType any
	if reply.Action != nil {
		actionType = reply.Action.Type
	}
	s.audit.Record(ctx, coord.ID, activity.LevelMessage, text,
		map[string]any{"role": "coordinator", "action": actionType})
	return reply, nil
}

func (s *ChatService) systemPrompt(ctx context.Context, name, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, coordinatorPrompt, strings.ToUpper(name))

	docs, err := s.knowledge.Query(ctx, knowledge.Query{Text: message, Limit: chatKnowledgeLimit})
	if err != nil {
		slog.WarnContext(ctx, "chat knowledge context", "error", err)
	}
	if len(docs) > 0 {
		b.WriteString("\n\nCONTEXTO DA BASE DE CONHECIMENTO:\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "[%s] %s: %s\n\n", d.Category, d.Title, d.Content)
		}
	}

	agents, err := s.store.ListActiveAgents(ctx)
	if err != nil {
		slog.WarnContext(ctx, "chat agent context", "error", err)
	}
	if len(agents) > 0 {
		b.WriteString("\n\nAGENTES ATUAIS:\n")
		for _, a := range agents {
			desc := a.Description
			if desc == "" {
				desc = "sem descricao"
			}
			fmt.Fprintf(&b, "- %s (%s, %s, %s/%s) - %s\n", a.Name, a.Kind, a.Status, a.LLMProvider, a.Model, desc)
		}
	}

	decisions, err := s.store.ListDecisions(ctx, decision.ListFilter{Limit: chatDecisionLimit})
	if err != nil {
		slog.WarnContext(ctx, "chat decision context", "error", err)
	}
	if len(decisions) > 0 {
		b.WriteString("\n\nDECISOES RECENTES:\n")
		for _, d := range decisions {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", d.Status, d.Type, d.Proposal)
		}
	}
	return b.String()
}

// ExtractAction returns the action embedded in an LLM reply, or nil when
// the reply is conversational or the JSON does not parse.
func ExtractAction(text string) *ChatAction {
	raw := actionPattern.FindString(text)
	if raw == "" {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	typ, _ := data["action"].(string)
	if typ == "" {
		return nil
	}
	return &ChatAction{Type: typ, Data: data}
}

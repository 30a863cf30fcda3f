// Package webhook defines business events pushed by the workshop site.
package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/doctorauto/sophia/internal/domain"
)

// Known event names.
const (
	EventServiceOrderCreated = "os.criada"
	EventPaymentReceived     = "pagamento.recebido"
	EventComplaint           = "reclamacao.nova"
	EventLead                = "lead.novo"
	EventAppointment         = "agendamento.novo"
)

// Event is a normalized inbound webhook.
type Event struct {
	Name       string         `json:"event"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Validate checks that the event is named.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: event is required", domain.ErrValidation)
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	return nil
}

// Field returns payload[key] formatted for log lines, or "" when absent.
func (e *Event) Field(key string) string {
	v, ok := e.Payload[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// FirstField returns the first non-empty payload field among keys.
func (e *Event) FirstField(keys ...string) string {
	for _, k := range keys {
		if v := e.Field(k); v != "" {
			return v
		}
	}
	return ""
}

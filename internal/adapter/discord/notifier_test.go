package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/doctorauto/sophia/internal/port/notifier"
)

var _ notifier.Notifier = (*Notifier)(nil)

func TestSendEmbed(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "Sophia")
	err := n.Send(context.Background(), notifier.Notification{
		Title: "Pagamento", Message: "R$ 350,00", Level: "success", Source: "pagamento.recebido",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Username != "Sophia" {
		t.Fatalf("expected username Sophia, got %q", got.Username)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Color != 0x2ECC71 {
		t.Fatalf("unexpected embeds: %+v", got.Embeds)
	}
	if got.Embeds[0].Footer == nil || got.Embeds[0].Footer.Text != "pagamento.recebido" {
		t.Fatal("expected footer with source")
	}
}

func TestSendNotConfigured(t *testing.T) {
	if err := NewNotifier("", "").Send(context.Background(), notifier.Notification{}); err != notifier.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

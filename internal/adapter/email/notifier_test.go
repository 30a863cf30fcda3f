package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/doctorauto/sophia/internal/config"
	"github.com/doctorauto/sophia/internal/port/notifier"
)

var _ notifier.Notifier = (*Notifier)(nil)

func TestSendNotConfigured(t *testing.T) {
	for _, cfg := range []config.SMTP{
		{},
		{Host: "smtp.example.com", Port: 587},
	} {
		err := NewNotifier(cfg).Send(context.Background(), notifier.Notification{Title: "x"})
		if !errors.Is(err, notifier.ErrNotConfigured) {
			t.Fatalf("cfg %+v: expected ErrNotConfigured, got %v", cfg, err)
		}
	}
}

func TestSendBuildsMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	n := NewNotifier(config.SMTP{
		Host: "smtp.example.com",
		Port: 2525,
		From: "sophia@oficina.test",
		To:   []string{"gerente@oficina.test", "dono@oficina.test"},
	})
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := n.Send(context.Background(), notifier.Notification{
		Title:   "Reclamacao <urgente>",
		Message: "linha 1\nlinha 2",
		Level:   "error",
		Source:  "reclamacao.nova",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 2 {
		t.Fatalf("expected 2 recipients, got %v", gotTo)
	}
	for _, want := range []string{
		"Subject: [Sophia][ERROR] Reclamacao <urgente>",
		"Reclamacao &lt;urgente&gt;",
		"linha 1<br>linha 2",
		"reclamacao.nova",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSendWrapsTransportError(t *testing.T) {
	n := NewNotifier(config.SMTP{Host: "h", Port: 25, To: []string{"a@b"}})
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	err := n.Send(context.Background(), notifier.Notification{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

// Package email delivers orchestrator notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/doctorauto/sophia/internal/config"
	"github.com/doctorauto/sophia/internal/port/notifier"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier sends each notification as one HTML e-mail to all recipients.
type Notifier struct {
	cfg  config.SMTP
	send sendFunc
}

// NewNotifier creates an e-mail notifier. Without a host or recipients
// Send returns notifier.ErrNotConfigured.
func NewNotifier(cfg config.SMTP) *Notifier {
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

func (n *Notifier) Name() string { return "email" }

func (n *Notifier) Send(ctx context.Context, note notifier.Notification) error {
	if n.cfg.Host == "" || len(n.cfg.To) == 0 {
		return notifier.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, n.cfg.To, n.message(note)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *Notifier) message(note notifier.Notification) []byte {
	subject := fmt.Sprintf("[Sophia][%s] %s", strings.ToUpper(levelOrInfo(note.Level)), note.Title)
	body := fmt.Sprintf("<h3>%s</h3>\n<p>%s</p>\n<p><small>%s</small></p>",
		html.EscapeString(note.Title),
		strings.ReplaceAll(html.EscapeString(note.Message), "\n", "<br>"),
		html.EscapeString(note.Source),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func levelOrInfo(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// Package notify emails rendered tickets to attendees.
//
// A Notifier renders the message body from a template file, builds a MIME
// message with the ticket attached, and hands it to a Transport (SES or
// SMTP).
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/eventpass/internal/pkg/logger"
)

// Transport delivers a fully built RFC 5322 message.
type Transport interface {
	Deliver(ctx context.Context, from, to string, raw []byte) error
}

// Config describes the outgoing message.
type Config struct {
	Sender      string
	SenderName  string
	Subject     string
	MessagePath string
}

// Notifier sends ticket emails. It is safe for concurrent use.
type Notifier struct {
	transport   Transport
	from        mail.Address
	subject     string
	messagePath string
	engine      *liquid.Engine
	log         *logger.Logger
}

// New creates a notifier over transport.
func New(transport Transport, cfg Config) *Notifier {
	subject := cfg.Subject
	if subject == "" {
		subject = "Your Event E-Ticket is Here!"
	}
	return &Notifier{
		transport:   transport,
		from:        mail.Address{Name: cfg.SenderName, Address: cfg.Sender},
		subject:     subject,
		messagePath: cfg.MessagePath,
		engine:      liquid.NewEngine(),
		log:         logger.With("notify"),
	}
}

// Send emails the ticket at ticketPath to the attendee.
func (n *Notifier) Send(ctx context.Context, email, name, ticketPath string) error {
	body, err := n.Body(name, email)
	if err != nil {
		return err
	}
	ticket, err := os.ReadFile(ticketPath)
	if err != nil {
		return fmt.Errorf("read ticket: %w", err)
	}

	to := mail.Address{Name: name, Address: email}
	raw, err := BuildMessage(Message{
		From:           n.from,
		To:             to,
		Subject:        n.subject,
		Body:           body,
		AttachmentName: filepath.Base(ticketPath),
		Attachment:     ticket,
	})
	if err != nil {
		return err
	}

	if err := n.transport.Deliver(ctx, n.from.Address, email, raw); err != nil {
		return fmt.Errorf("deliver to %s: %w", email, err)
	}
	n.log.Info("ticket email sent", "email", email)
	return nil
}

// Body renders the message template for one attendee. The file is read on
// every call so edits apply without a restart. Liquid variables name and
// email are bound, and the literal {name} placeholder is substituted.
func (n *Notifier) Body(name, email string) (string, error) {
	tpl, err := os.ReadFile(n.messagePath)
	if err != nil {
		return "", fmt.Errorf("read message template: %w", err)
	}
	out, serr := n.engine.ParseAndRenderString(string(tpl), liquid.Bindings{
		"name":  name,
		"email": email,
	})
	if serr != nil {
		return "", fmt.Errorf("render message template: %w", serr)
	}
	return strings.ReplaceAll(out, "{name}", name), nil
}

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPTransport delivers over SMTP with implicit TLS (port 465), the way
// Gmail app passwords are used.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	tls      *tls.Config
}

// NewSMTPTransport creates a transport that authenticates as username.
func NewSMTPTransport(host string, port int, username, password string, timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPTransport{
		host:     host,
		port:     port,
		username: username,
		password: password,
		timeout:  timeout,
		tls:      &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
	}
}

func (t *SMTPTransport) Deliver(ctx context.Context, from, to string, raw []byte) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: t.timeout}, Config: t.tls}

	dctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	conn, err := dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if t.password != "" {
		if err := c.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end DATA: %w", err)
	}
	return c.Quit()
}

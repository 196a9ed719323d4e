package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	subject := fmt.Sprintf("[%s] %s: %s", payload.Severity, payload.Type, payload.AddressShort)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(s.buildEmailBody(payload))

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildEmailBody(payload *AlertPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TOKEN GATE ALERT - %s\n", payload.Severity)
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Type:        %s\n", payload.Type)
	fmt.Fprintf(&b, "Token:       %s\n", payload.Address)
	fmt.Fprintf(&b, "Time:        %s\n\n", payload.Timestamp.Format(time.RFC3339))
	b.WriteString(payload.Message)
	b.WriteString("\n\n─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Environment: %s\n", payload.Environment)
	return b.String()
}

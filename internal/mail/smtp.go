// Package mail sends the email commands over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/usherbot/usherbot/internal/config"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("mail not configured")

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers plain-text mail through one SMTP relay.
type Sender struct {
	cfg  config.MailConfig
	send sendFunc
	now  func() time.Time
}

func NewSender(cfg config.MailConfig) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// SendEmail sends one message. The context bounds the wait, not the SMTP
// session itself.
func (s *Sender) SendEmail(ctx context.Context, subject, body, to string) error {
	if strings.TrimSpace(s.cfg.Host) == "" {
		return ErrNotConfigured
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("send email: header contains line break")
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}
	msg := s.compose(from, to, subject, body)

	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, from, []string{to}, msg) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", to, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
	}
	slog.Info("Email sent", "to", to, "subject", subject)
	return nil
}

func (s *Sender) compose(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

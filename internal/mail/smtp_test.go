package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/usherbot/usherbot/internal/config"
)

func TestSendEmailComposesMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	s := NewSender(config.MailConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "pw"})
	s.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	if err := s.SendEmail(context.Background(), "Hello", "line one\nline two", "ann@example.com"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotAuth == nil {
		t.Error("expected auth when username is set")
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "ann@example.com" {
		t.Errorf("envelope = %q -> %v", gotFrom, gotTo)
	}
	for _, want := range []string{"To: ann@example.com\r\n", "Subject: Hello\r\n", "\r\n\r\nline one\r\nline two"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSendEmailErrors(t *testing.T) {
	if err := NewSender(config.MailConfig{}).SendEmail(context.Background(), "s", "b", "a@example.com"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	s := NewSender(config.MailConfig{Host: "smtp.example.com", Port: 25, From: "bot@example.com"})
	relayErr := errors.New("relay denied")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return relayErr }
	if err := s.SendEmail(context.Background(), "s", "b", "a@example.com"); !errors.Is(err, relayErr) {
		t.Errorf("err = %v, want relay error", err)
	}
	if err := s.SendEmail(context.Background(), "s\r\nBcc: x", "b", "a@example.com"); err == nil {
		t.Error("expected header injection to be refused")
	}
}

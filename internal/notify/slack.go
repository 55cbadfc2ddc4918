// Package notify forwards operator-visible bot transitions to Slack.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/usherbot/usherbot/internal/bus"
)

// DefaultKinds are the notice kinds worth an operator's attention.
var DefaultKinds = []string{bus.NoticeMode, bus.NoticeRemote, bus.NoticeLifecycle}

// SlackNotifier posts notices to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	botName    string
	kinds      map[string]bool
	client     *http.Client
}

// NewSlackNotifier creates a notifier for the given kinds, DefaultKinds
// when none are given.
func NewSlackNotifier(webhookURL, botName string, kinds ...string) *SlackNotifier {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	n := &SlackNotifier{
		webhookURL: strings.TrimSpace(webhookURL),
		botName:    botName,
		kinds:      map[string]bool{},
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, k := range kinds {
		n.kinds[k] = true
	}
	return n
}

// Enabled reports whether a webhook is configured.
func (n *SlackNotifier) Enabled() bool { return n != nil && n.webhookURL != "" }

// Handle is a bus subscriber. Delivery failures are logged.
func (n *SlackNotifier) Handle(notice *bus.Notice) {
	if !n.Enabled() || notice == nil || !n.kinds[notice.Kind] {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.Notify(ctx, notice); err != nil {
		slog.Warn("Slack notification failed", "kind", notice.Kind, "error", err)
	}
}

// Notify posts one notice.
func (n *SlackNotifier) Notify(ctx context.Context, notice *bus.Notice) error {
	msg := &slack.WebhookMessage{
		Username: n.botName,
		Text:     Format(notice),
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

// Format renders a notice as a single Slack line.
func Format(notice *bus.Notice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", notice.Kind)
	if notice.Subject != "" {
		fmt.Fprintf(&b, " *%s*", notice.Subject)
	}
	if notice.Text != "" {
		b.WriteString(" ")
		b.WriteString(notice.Text)
	}
	return b.String()
}

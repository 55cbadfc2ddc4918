// Package chat interprets inbound chat messages: small talk is answered
// from canned tables and the responder chain, slash commands are checked
// against the privilege policy and executed.
package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/usherbot/usherbot/internal/automation"
	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/meeting"
	"github.com/usherbot/usherbot/internal/policy"
	"github.com/usherbot/usherbot/internal/session"
	"github.com/usherbot/usherbot/internal/textutil"
)

// CommandPrefix starts every chat command.
const CommandPrefix = "/"

// Conversation produces a free-form reply; ok is false when nothing
// answered.
type Conversation interface {
	Converse(ctx context.Context, text, from string) (reply string, ok bool)
}

// CannedConversation is implemented by conversations that can answer from
// fixed tables alone. It is used while the Converse flag is off.
type CannedConversation interface {
	ConverseCanned(ctx context.Context, text, from string) (reply string, ok bool)
}

// Mailer delivers the email commands.
type Mailer interface {
	SendEmail(ctx context.Context, subject, body, to string) error
}

// NoticePublisher receives a record of every executed command.
type NoticePublisher interface {
	PublishNotice(n *bus.Notice) bool
}

// Deps are the collaborators of an Interpreter. Speaker, Mailer,
// Conversation and Notices may be nil.
type Deps struct {
	Modes        *automation.Registry
	Directory    policy.AdminChecker
	Session      *session.Session
	Participants meeting.ParticipantSource
	Controller   meeting.Controller
	Speaker      meeting.Speaker
	Mailer       Mailer
	Conversation Conversation
	Notices      NoticePublisher
	Policy       policy.Engine
}

// Interpreter handles chat messages. It is safe for concurrent use.
type Interpreter struct {
	deps Deps

	mu       sync.Mutex
	convo    Conversation
	matchers keywordTables
}

type keywordTables struct {
	cfg       *config.Config
	broadcast *textutil.KeywordMatcher
	topic     *textutil.KeywordMatcher
}

// New creates an Interpreter. A nil Policy defaults to directory admins.
func New(deps Deps) *Interpreter {
	if deps.Policy == nil {
		deps.Policy = policy.NewDirectoryEngine(deps.Directory)
	}
	return &Interpreter{deps: deps, convo: deps.Conversation}
}

// SetConversation swaps the responder chain, e.g. after a config reload.
func (in *Interpreter) SetConversation(c Conversation) {
	in.mu.Lock()
	in.convo = c
	in.mu.Unlock()
}

func (in *Interpreter) conversation() Conversation {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.convo
}

// Handle processes one message. Panics are logged and swallowed.
func (in *Interpreter) Handle(ctx context.Context, cfg *config.Config, msg meeting.ChatMessage, now time.Time) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Chat handling failed", "from", msg.From.Name, "text", msg.Text, "panic", p)
		}
	}()

	slog.Info("New message", "from", msg.From.Name, "to", msg.To, "private", msg.IsPrivate, "text", msg.Text)
	if msg.From.IsSelf || !in.deps.Modes.Enabled(automation.ProcessChat) {
		return
	}
	self, _ := in.deps.Participants.Self()
	if self.ID != "" && msg.From.ID == self.ID {
		return
	}

	text := strings.TrimSpace(msg.Text)
	replyTo := meeting.To(msg.From)
	direct := false
	switch {
	case msg.To == meeting.Everyone:
		stripped, changed := textutil.StripName(text, cfg.Bot.Name)
		if !changed && !msg.IsPrivate {
			return
		}
		text = stripped
		replyTo = meeting.Everyone
	case self.ID != "" && msg.To == meeting.To(self):
		direct = true
	default:
		return
	}

	if !strings.HasPrefix(text, CommandPrefix) {
		in.smallTalk(ctx, cfg, msg.From, replyTo, text, now)
		return
	}
	in.command(ctx, cfg, msg.From, replyTo, direct, text, now)
}

func (in *Interpreter) smallTalk(ctx context.Context, cfg *config.Config, from meeting.Participant, replyTo meeting.Recipient, text string, now time.Time) {
	speak := replyTo == meeting.Everyone || in.attendingCount() == 2

	response, ok := in.deps.Session.Chat.OneTimeHi(from.ID, text, cfg.Chat.OneTimeHiSequences)
	tables := in.keywordTables(cfg)
	if !ok {
		if kw := tables.broadcast.Match(text); len(kw) > 0 {
			response, ok = cfg.Chat.BroadcastCommands[kw[0]], true
			speak = false
		}
	}
	if !ok && tables.topic.Contains(text) {
		in.SendTopic(ctx, cfg, replyTo, from, true, now)
		return
	}
	if convo := in.conversation(); !ok && convo != nil {
		if in.deps.Modes.Enabled(automation.Converse) {
			response, ok = convo.Converse(ctx, text, from.ID)
		} else if canned, isCanned := convo.(CannedConversation); isCanned {
			response, ok = canned.ConverseCanned(ctx, text, from.ID)
		}
	}
	if !ok {
		slog.Info("No response produced", "from", from.Name)
		return
	}

	reply := textutil.FormatResponse(response, from.Name, now)
	in.send(ctx, replyTo, reply)
	if speak {
		in.say(ctx, reply)
	}
}

// say speaks text aloud when speech is enabled.
func (in *Interpreter) say(ctx context.Context, text string) {
	if in.deps.Speaker == nil || !in.deps.Modes.Enabled(automation.Speak) {
		return
	}
	if err := in.deps.Speaker.Speak(ctx, text); err != nil {
		slog.Warn("Speak failed", "error", err)
	}
}

func (in *Interpreter) send(ctx context.Context, to meeting.Recipient, text string) bool {
	if err := in.deps.Controller.Send(ctx, to, text); err != nil {
		slog.Warn("Send chat message failed", "to", to, "error", err)
		return false
	}
	return true
}

func (in *Interpreter) attendingCount() int {
	n := 0
	for _, p := range in.deps.Participants.Snapshot() {
		if p.Status == meeting.StatusAttending {
			n++
		}
	}
	return n
}

// keywordTables caches keyword matchers per config snapshot.
func (in *Interpreter) keywordTables(cfg *config.Config) keywordTables {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.matchers.cfg == cfg {
		return in.matchers
	}
	keys := make([]string, 0, len(cfg.Chat.BroadcastCommands))
	for k := range cfg.Chat.BroadcastCommands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := keywordTables{cfg: cfg}
	var err error
	if t.broadcast, err = textutil.NewKeywordMatcher(keys); err != nil {
		slog.Warn("Broadcast keyword table invalid", "error", err)
	}
	if t.topic, err = textutil.NewKeywordMatcher(cfg.Chat.TopicKeywords); err != nil {
		slog.Warn("Topic keyword table invalid", "error", err)
	}
	in.matchers = t
	return t
}

// GetTopic renders the current topic. With useDefault false an unset
// topic yields "".
func (in *Interpreter) GetTopic(useDefault bool, now time.Time) string {
	topic := in.deps.Session.Chat.Topic()
	if topic == "" {
		if useDefault {
			return "The topic has not been set"
		}
		return ""
	}
	return textutil.UppercaseFirst(textutil.TodayTonight(now)) + "'s topic: " + topic
}

// SendTopic sends the topic to one recipient. A single participant also
// gets their one-time greeting in front of it.
func (in *Interpreter) SendTopic(ctx context.Context, cfg *config.Config, to meeting.Recipient, recipient meeting.Participant, useDefault bool, now time.Time) bool {
	topic := in.GetTopic(useDefault, now)
	if topic == "" {
		return false
	}
	if !to.IsGroup() {
		if hi, ok := in.deps.Session.Chat.OneTimeHi(recipient.ID, "morning", cfg.Chat.OneTimeHiSequences); ok {
			topic = textutil.FormatResponse(hi, recipient.Name, now) + " " + topic
		}
	}
	return in.send(ctx, to, topic)
}

// OnJoinMeeting sends the topic to a newly arrived participant when
// configured to.
func (in *Interpreter) OnJoinMeeting(ctx context.Context, cfg *config.Config, p meeting.Participant, now time.Time) bool {
	if p.IsSelf || !in.deps.Modes.Enabled(automation.SendTopicOnJoin) {
		return false
	}
	return in.SendTopic(ctx, cfg, meeting.To(p), p, false, now)
}

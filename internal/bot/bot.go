// Package bot wires the moderation core to the meeting: it owns the tick
// body, dispatches platform events and applies remote directives.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/usherbot/usherbot/internal/admission"
	"github.com/usherbot/usherbot/internal/automation"
	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/chat"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/directory"
	"github.com/usherbot/usherbot/internal/meeting"
	"github.com/usherbot/usherbot/internal/remote"
	"github.com/usherbot/usherbot/internal/responder"
	"github.com/usherbot/usherbot/internal/scheduler"
	"github.com/usherbot/usherbot/internal/session"
)

// SettingsStore persists small key/value state such as the last automation
// flags. The audit timeline implements it.
type SettingsStore interface {
	SetSetting(key, value string) error
}

// Options configures a Bot. Config, Roster, Controller and Bus are
// required.
type Options struct {
	Config *config.Config
	// ConfigPath enables hot reload when set.
	ConfigPath string
	Roster     *meeting.Roster
	Controller meeting.Controller
	Speaker    meeting.Speaker
	Bus        *bus.MessageBus
	Sources    []remote.Source
	Mailer     chat.Mailer
	Responders *responder.Registry
	Settings   SettingsStore
	LogLevel   *slog.LevelVar
	Now        func() time.Time
}

// Bot is one moderation session.
type Bot struct {
	cfg     atomic.Pointer[config.Config]
	watcher *config.Watcher

	modes   *automation.Registry
	dir     *directory.Directory
	sess    *session.Session
	roster  *meeting.Roster
	ctl     *trackedController
	speaker meeting.Speaker
	bus     *bus.MessageBus
	sources []remote.Source

	admission *admission.Engine
	chat      *chat.Interpreter

	responders *responder.Registry
	chainMu    sync.Mutex
	chain      *responder.Chain

	settings SettingsStore
	sched    *scheduler.Scheduler
	now      func() time.Time
}

// New builds a Bot from opts.
func New(opts Options) *Bot {
	cfg := opts.Config
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Responders == nil {
		opts.Responders = responder.DefaultRegistry()
	}

	b := &Bot{
		modes:      automation.NewRegistry(cfg.Bot.Automation, opts.LogLevel),
		dir:        directory.New(cfg.Paths.KnownUsers),
		sess:       session.New(),
		roster:     opts.Roster,
		ctl:        &trackedController{Controller: opts.Controller},
		bus:        opts.Bus,
		sources:    opts.Sources,
		responders: opts.Responders,
		settings:   opts.Settings,
		now:        opts.Now,
	}
	b.cfg.Store(cfg)
	if opts.ConfigPath != "" {
		b.watcher = config.NewWatcher(opts.ConfigPath)
	}
	if opts.Speaker != nil {
		b.speaker = &trackedSpeaker{Speaker: opts.Speaker, closed: &b.ctl.closed}
	}
	b.modes.Reset(cfg.Bot.Automation, cfg.Bot.Debug, cfg.Bot.Paused)
	b.modes.OnChange(b.onModeChange)
	b.sess.Chat.SetWaitingMessage(cfg.Admission.WaitingRoomAnnouncementMessage)

	b.admission = admission.New(b.modes, b.dir, b.sess, b.roster, b.ctl, b.speaker, b.bus)
	b.chat = chat.New(chat.Deps{
		Modes:        b.modes,
		Directory:    b.dir,
		Session:      b.sess,
		Participants: b.roster,
		Controller:   b.ctl,
		Speaker:      b.speaker,
		Mailer:       opts.Mailer,
		Notices:      b.bus,
	})
	b.sched = scheduler.New(cfg.Scheduler.TickInterval, b.Tick)
	return b
}

// Config returns the active settings snapshot.
func (b *Bot) Config() *config.Config { return b.cfg.Load() }

func (b *Bot) Modes() *automation.Registry { return b.modes }

func (b *Bot) Directory() *directory.Directory { return b.dir }

func (b *Bot) Session() *session.Session { return b.sess }

func (b *Bot) Scheduler() *scheduler.Scheduler { return b.sched }

// Start loads the known users and the responder chain.
func (b *Bot) Start(ctx context.Context) {
	cfg := b.Config()
	if _, err := b.dir.Reload(); err != nil {
		slog.Warn("Known users load failed", "path", b.dir.Path(), "error", err)
	}
	b.swapChain(b.loadChain(ctx, cfg))
	b.notice(bus.NoticeLifecycle, cfg.Bot.Name, "started", map[string]any{"flags": b.modes.Flags().String()})
}

// Run starts the session and blocks until ctx ends or a shutdown is
// requested.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.Start(ctx)
	go func() { _ = b.bus.DispatchNotices(ctx) }()
	go b.ConsumeEvents(ctx)

	err := b.sched.Run(ctx)
	b.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop releases responders. It does not leave the meeting.
func (b *Bot) Stop() {
	b.notice(bus.NoticeLifecycle, b.Config().Bot.Name, "stopped", nil)
	b.swapChain(nil)
}

func (b *Bot) loadChain(ctx context.Context, cfg *config.Config) *responder.Chain {
	m, err := responder.LoadManifest(cfg.Paths.ResponderFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Responder manifest invalid; using defaults", "path", cfg.Paths.ResponderFile, "error", err)
		}
		m = responder.ManifestFromIDs(cfg.Responders.Default)
	}
	return b.responders.Load(ctx, m, responder.InitContext{
		BotName:  cfg.Bot.Name,
		Chat:     cfg.Chat,
		Provider: cfg.Provider,
	})
}

// swapChain installs chain and stops the previous one.
func (b *Bot) swapChain(chain *responder.Chain) {
	b.chainMu.Lock()
	old := b.chain
	b.chain = chain
	b.chainMu.Unlock()
	if chain != nil {
		b.chat.SetConversation(chain)
	} else {
		b.chat.SetConversation(nil)
	}
	old.Stop()
}

func (b *Bot) onModeChange(mode string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	flags := b.modes.Flags()
	meta := map[string]any{"flags": flags.String()}
	for _, name := range automation.ModeNames {
		if v, err := b.modes.Mode(name); err == nil {
			meta[name] = v
		}
	}
	b.notice(bus.NoticeMode, mode, state, meta)
	if b.settings != nil {
		if err := b.settings.SetSetting("automation", flags.String()); err != nil {
			slog.Warn("Persist automation flags failed", "error", err)
		}
	}
}

func (b *Bot) notice(kind, subject, text string, meta map[string]any) {
	if b.bus == nil {
		return
	}
	b.bus.PublishNotice(&bus.Notice{Kind: kind, Subject: subject, Text: text, Metadata: meta})
}

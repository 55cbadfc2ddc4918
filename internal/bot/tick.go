package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/remote"
)

// Tick is the body of one orchestration firing: reload settings and known
// users, apply remote directives, then run admission unless paused.
func (b *Bot) Tick(ctx context.Context, iteration uint32) {
	id := fmt.Sprintf("%04X", iteration)
	slog.Debug("Tick", "iteration", id)

	if b.watcher != nil {
		if cfg := b.watcher.Check(); cfg != nil {
			b.applyConfig(ctx, cfg)
		}
	}
	cfg := b.Config()

	if changed, err := b.dir.Reload(); err != nil {
		slog.Warn("Known users reload failed", "path", b.dir.Path(), "error", err)
	} else if changed {
		slog.Info("Known users reloaded", "count", b.dir.Len())
	}

	b.drainRemote(ctx)
	if b.sched.ShuttingDown() {
		return
	}

	if b.modes.Paused() {
		slog.Debug("Paused; skipping participant actions", "iteration", id)
	} else {
		res := b.admission.Run(ctx, cfg, b.now())
		if len(res.Admitted) > 0 || len(res.Promoted) > 0 {
			slog.Info("Tick done", "iteration", id, "attending", res.Attending, "waiting", res.Waiting,
				"admitted", len(res.Admitted), "promoted", len(res.Promoted))
		}
	}

	if b.ctl.Closed() {
		slog.Info("Meeting closed; shutting down", "iteration", id)
		b.sched.Shutdown()
	}
}

// applyConfig installs a reloaded config. Modes and the waiting-room
// message go back to the file's values.
func (b *Bot) applyConfig(ctx context.Context, cfg *config.Config) {
	b.cfg.Store(cfg)
	b.modes.Reset(cfg.Bot.Automation, cfg.Bot.Debug, cfg.Bot.Paused)
	b.sess.Chat.SetWaitingMessage(cfg.Admission.WaitingRoomAnnouncementMessage)
	b.swapChain(b.loadChain(ctx, cfg))
	b.notice(bus.NoticeLifecycle, cfg.Bot.Name, "config reloaded", map[string]any{"flags": cfg.Bot.Automation.String()})
}

func (b *Bot) drainRemote(ctx context.Context) {
	for _, src := range b.sources {
		lines, err := src.Drain(ctx)
		if err != nil {
			slog.Warn("Remote command read failed", "source", src.Name(), "error", err)
			continue
		}
		if len(lines) > 0 {
			slog.Info("Processing remote commands", "source", src.Name(), "count", len(lines))
		}
		for _, line := range lines {
			b.applyLine(ctx, src.Name(), line)
		}
	}
}

// applyLine parses and applies one directive. A panic is contained to the
// line that caused it.
func (b *Bot) applyLine(ctx context.Context, source, line string) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Remote command failed", "source", source, "directive", line, "panic", p)
		}
	}()

	d, err := remote.ParseDirective(line)
	if err != nil {
		slog.Error("Unknown remote command", "source", source, "directive", line)
		return
	}
	b.notice(bus.NoticeRemote, source, d.Raw, nil)

	switch d.Kind {
	case remote.KindMode:
		if _, err := b.modes.SetMode(d.Mode, d.On); err != nil {
			slog.Error("Remote mode change failed", "directive", line, "error", err)
		}
	case remote.KindExit:
		slog.Info("Received remote command", "directive", line)
		if err := b.LeaveMeeting(ctx, false); err != nil {
			slog.Warn("Leave meeting failed", "error", err)
		}
		b.sched.Shutdown()
	case remote.KindKill:
		slog.Info("Received remote command", "directive", line)
		if err := b.LeaveMeeting(ctx, true); err != nil {
			slog.Warn("End meeting failed", "error", err)
		}
		b.sched.Shutdown()
	}
}

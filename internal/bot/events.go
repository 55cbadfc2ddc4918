package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/usherbot/usherbot/internal/meeting"
)

// ConsumeEvents dispatches bus events until ctx ends. Each event runs on
// its own goroutine, outside the tick's single-flight guard.
func (b *Bot) ConsumeEvents(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		ev, err := b.bus.ConsumeEvent(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("Event consume failed", "error", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.HandleEvent(ctx, ev)
		}()
	}
}

// HandleEvent reacts to one platform event. Panics are logged.
func (b *Bot) HandleEvent(ctx context.Context, ev *meeting.Event) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Event handling failed", "type", ev.Type, "trace_id", ev.TraceID, "panic", p)
		}
	}()
	if b.sched.ShuttingDown() {
		return
	}

	cfg := b.Config()
	now := b.now()
	p := ev.Participant

	switch ev.Type {
	case meeting.EventChatMessage:
		if ev.Chat != nil {
			b.chat.Handle(ctx, cfg, *ev.Chat, now)
		}
	case meeting.EventJoinedWaitingRoom:
		if b.modes.Paused() {
			return
		}
		slog.Info("Participant joined waiting room", "participant", p.Name)
		b.admission.OnJoinWaitingRoom(ctx, p)
	case meeting.EventJoinedMeeting:
		if b.modes.Paused() {
			return
		}
		slog.Info("Participant joined meeting", "participant", p.Name)
		b.admission.OnJoinMeeting(ctx, p)
		b.chat.OnJoinMeeting(ctx, cfg, p, now)
	case meeting.EventLeftMeeting, meeting.EventLeftWaitingRoom:
		slog.Debug("Participant left", "participant", p.Name, "type", ev.Type)
	default:
		slog.Debug("Participant updated", "participant", p.Name)
	}
}

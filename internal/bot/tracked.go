package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/usherbot/usherbot/internal/meeting"
)

// trackedController notes when any action reports the meeting closed.
type trackedController struct {
	meeting.Controller
	closed atomic.Bool
}

// Closed reports whether the platform said the meeting is gone.
func (c *trackedController) Closed() bool { return c.closed.Load() }

func (c *trackedController) track(err error) error {
	return trackClosed(&c.closed, err)
}

func trackClosed(flag *atomic.Bool, err error) error {
	if errors.Is(err, meeting.ErrClosed) && flag.CompareAndSwap(false, true) {
		slog.Info("Meeting closed", "error", err)
	}
	return err
}

func (c *trackedController) Admit(ctx context.Context, p meeting.Participant) error {
	return c.track(c.Controller.Admit(ctx, p))
}

func (c *trackedController) Promote(ctx context.Context, p meeting.Participant, role meeting.Role) error {
	return c.track(c.Controller.Promote(ctx, p, role))
}

func (c *trackedController) Demote(ctx context.Context, p meeting.Participant) error {
	return c.track(c.Controller.Demote(ctx, p))
}

func (c *trackedController) Mute(ctx context.Context, p meeting.Participant) error {
	return c.track(c.Controller.Mute(ctx, p))
}

func (c *trackedController) Unmute(ctx context.Context, p meeting.Participant) error {
	return c.track(c.Controller.Unmute(ctx, p))
}

func (c *trackedController) Rename(ctx context.Context, p meeting.Participant, newName string) error {
	return c.track(c.Controller.Rename(ctx, p, newName))
}

func (c *trackedController) Send(ctx context.Context, to meeting.Recipient, text string) error {
	return c.track(c.Controller.Send(ctx, to, text))
}

func (c *trackedController) Leave(ctx context.Context, endForAll bool) error {
	return c.track(c.Controller.Leave(ctx, endForAll))
}

func (c *trackedController) ReclaimHost(ctx context.Context) error {
	return c.track(c.Controller.ReclaimHost(ctx))
}

type trackedSpeaker struct {
	meeting.Speaker
	closed *atomic.Bool
}

func (s *trackedSpeaker) Speak(ctx context.Context, text string) error {
	return trackClosed(s.closed, s.Speaker.Speak(ctx, text))
}

func (s *trackedSpeaker) Play(ctx context.Context, sound string) error {
	return trackClosed(s.closed, s.Speaker.Play(ctx, sound))
}

package bot

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/meeting"
)

// LeaveMeeting leaves the meeting. Leaving without ending it while host
// first passes host to an attending co-host; when there is none, or the
// hand-off fails, the meeting is ended for everyone.
func (b *Bot) LeaveMeeting(ctx context.Context, endForAll bool) error {
	if !endForAll {
		endForAll = !b.handOffHost(ctx)
	}
	slog.Info("Leaving meeting", "end_for_all", endForAll)
	b.notice(bus.NoticeLifecycle, b.Config().Bot.Name, "leaving meeting", map[string]any{"end_for_all": endForAll})
	return b.ctl.Leave(ctx, endForAll)
}

// handOffHost reports whether the bot can leave without ending the meeting.
func (b *Bot) handOffHost(ctx context.Context) bool {
	self, ok := b.roster.Self()
	if !ok || !self.IsHost {
		slog.Debug("Not host; leaving without hand-off")
		return true
	}

	alt, found := lo.Find(b.roster.Snapshot(), func(p meeting.Participant) bool {
		return !p.IsSelf && p.IsCoHost && p.Status == meeting.StatusAttending
	})
	if !found {
		slog.Error("No co-host to pass host to; ending meeting")
		return false
	}
	slog.Info("Passing host", "participant", alt.Name)
	if err := b.ctl.Promote(ctx, alt, meeting.RoleHost); err != nil {
		slog.Error("Pass host failed; ending meeting", "participant", alt.Name, "error", err)
		return false
	}
	return true
}

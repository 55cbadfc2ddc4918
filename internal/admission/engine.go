// Package admission decides, once per tick, who leaves the waiting room
// and who gets promoted to co-host.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/usherbot/usherbot/internal/automation"
	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/directory"
	"github.com/usherbot/usherbot/internal/meeting"
	"github.com/usherbot/usherbot/internal/session"
	"github.com/usherbot/usherbot/internal/textutil"
)

// NoticePublisher receives a record of every admission and promotion.
type NoticePublisher interface {
	PublishNotice(n *bus.Notice) bool
}

// Engine applies the admission policy. The zero value is not usable; build
// one with New.
type Engine struct {
	modes   *automation.Registry
	dir     *directory.Directory
	sess    *session.Session
	source  meeting.ParticipantSource
	ctl     meeting.Controller
	speaker meeting.Speaker
	notices NoticePublisher

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates an Engine. speaker and notices may be nil.
func New(modes *automation.Registry, dir *directory.Directory, sess *session.Session,
	source meeting.ParticipantSource, ctl meeting.Controller, speaker meeting.Speaker, notices NoticePublisher) *Engine {
	return &Engine{
		modes:   modes,
		dir:     dir,
		sess:    sess,
		source:  source,
		ctl:     ctl,
		speaker: speaker,
		notices: notices,
		sleep:   sleepCtx,
	}
}

// Result summarises one pass.
type Result struct {
	Attending int
	Waiting   int
	Admitted  []meeting.Participant
	Promoted  []meeting.Participant
}

// Run performs one admission pass over a snapshot of the participants.
func (e *Engine) Run(ctx context.Context, cfg *config.Config, now time.Time) Result {
	var res Result
	flags := e.modes.Flags()
	if !flags.Has(automation.ProcessParticipants) {
		return res
	}

	if self, ok := e.source.Self(); ok {
		e.maintainSelf(ctx, cfg, flags, self)
	}

	snapshot := e.source.Snapshot()
	self, _ := findSelf(snapshot)

	for _, p := range snapshot {
		if p.IsSelf {
			continue
		}
		switch p.Status {
		case meeting.StatusAttending:
			res.Attending++
			if e.shouldPromote(flags, self, p) && e.promote(ctx, p, "tick") {
				res.Promoted = append(res.Promoted, p)
			}
		case meeting.StatusWaiting:
			res.Waiting++
			if e.considerWaiting(ctx, cfg, flags, p, now) {
				res.Admitted = append(res.Admitted, p)
				res.Waiting--
				res.Attending++
			}
		}
	}

	e.announce(ctx, cfg, res, now)
	e.greetFirst(ctx, cfg, flags, snapshot, now)
	return res
}

func findSelf(ps []meeting.Participant) (meeting.Participant, bool) {
	for _, p := range ps {
		if p.IsSelf {
			return p, true
		}
	}
	return meeting.Participant{}, false
}

func (e *Engine) maintainSelf(ctx context.Context, cfg *config.Config, flags automation.Flags, self meeting.Participant) {
	if flags.Has(automation.ReclaimHost) && !self.IsHost {
		role := "none"
		if self.IsCoHost {
			role = "co-host"
		}
		slog.Warn("Not host; reclaiming host", "role", role)
		if err := e.ctl.ReclaimHost(ctx); err != nil {
			slog.Warn("Reclaim host failed", "error", err)
		} else {
			slog.Info("Reclaimed host")
		}
	}
	if flags.Has(automation.RenameSelf) && cfg.Bot.Name != "" && self.Name != cfg.Bot.Name {
		slog.Info("Renaming myself", "from", self.Name, "to", cfg.Bot.Name)
		if err := e.ctl.Rename(ctx, self, cfg.Bot.Name); err != nil {
			slog.Warn("Rename myself failed", "error", err)
		}
	}
	if flags.Has(automation.UnmuteSelf) && self.IsAudioMuted {
		slog.Info("Unmuting myself")
		if err := e.ctl.Unmute(ctx, self); err != nil {
			slog.Warn("Unmute myself failed", "error", err)
		}
	}
}

// shouldPromote is the single co-host predicate shared by the tick and the
// join-meeting event.
func (e *Engine) shouldPromote(flags automation.Flags, self, p meeting.Participant) bool {
	return flags.Has(automation.CoHostKnown) &&
		self.IsHost &&
		!p.IsPrivileged() &&
		e.dir.IsAdmin(p.Name)
}

func (e *Engine) promote(ctx context.Context, p meeting.Participant, trigger string) bool {
	slog.Info("Promoting participant to co-host", "participant", p.Name, "trigger", trigger)
	if err := e.ctl.Promote(ctx, p, meeting.RoleCoHost); err != nil {
		slog.Info("Promotion failed", "participant", p.Name, "error", err)
		return false
	}
	e.publish(bus.NoticePromotion, p.Name, "promoted to co-host", map[string]any{"trigger": trigger})
	return true
}

// considerWaiting admits p when policy allows and reports whether it did.
func (e *Engine) considerWaiting(ctx context.Context, cfg *config.Config, flags automation.Flags, p meeting.Participant, now time.Time) bool {
	if flags.Has(automation.AdmitKnown) && e.dir.IsKnown(p.Name) {
		return e.admit(ctx, p, map[string]any{"reason": "known"})
	}
	if !flags.Has(automation.AdmitOthers) {
		return false
	}

	when := e.sess.Admission.WhenEligible(p.WaitingSince, cfg.Admission.UnknownWait(), cfg.Admission.UnknownThrottle())
	if now.Before(when) {
		msg := fmt.Sprintf("pending until %s", when.Format(time.RFC3339))
		if e.sess.Admission.NotePending(p.ID, msg) {
			slog.Info("Unknown participant waiting for admission", "participant", p.Name, "eligible_at", when.Format(time.TimeOnly))
		}
		return false
	}

	if !e.admit(ctx, p, map[string]any{"reason": "unknown"}) {
		return false
	}
	e.sess.Admission.RecordAdmission(p.ID, now)
	return true
}

// admit lets p in unless it already left the waiting room or another
// handler is admitting the same stay.
func (e *Engine) admit(ctx context.Context, p meeting.Participant, meta map[string]any) bool {
	current, ok := e.source.ByID(p.ID)
	if !ok || current.Status != meeting.StatusWaiting {
		slog.Debug("Participant no longer waiting", "participant", p.Name)
		return false
	}
	if !e.sess.Admission.ClaimAdmit(current.ID, current.WaitingSince) {
		slog.Debug("Admission already in progress", "participant", p.Name)
		return false
	}
	args := []any{"participant", current.Name}
	for k, v := range meta {
		args = append(args, k, v)
	}
	slog.Info("Admitting participant", args...)
	if err := e.ctl.Admit(ctx, current); err != nil {
		e.sess.Admission.ReleaseAdmit(current.ID)
		slog.Info("Admission failed", "participant", current.Name, "error", err)
		return false
	}
	e.publish(bus.NoticeAdmission, current.Name, "admitted", meta)
	return true
}

// announce sends the waiting-room message while only waiting participants
// are present, at most once per configured delay.
func (e *Engine) announce(ctx context.Context, cfg *config.Config, res Result, now time.Time) {
	msg := e.sess.Chat.WaitingMessage()
	delay := cfg.Admission.AnnouncementDelay()
	if res.Attending != 0 || res.Waiting == 0 || msg == "" || delay <= 0 {
		return
	}
	if !e.sess.Admission.AnnouncementDue(delay, now) {
		return
	}
	if err := e.ctl.Send(ctx, meeting.WaitingRoom, msg); err != nil {
		slog.Warn("Waiting room announcement failed", "error", err)
		return
	}
	e.sess.Admission.RecordAnnouncement(now)
}

// greetFirst welcomes the first known participant heard on computer audio,
// once per run.
func (e *Engine) greetFirst(ctx context.Context, cfg *config.Config, flags automation.Flags, snapshot []meeting.Participant, now time.Time) {
	if e.sess.Admission.FirstGreetingDone() {
		return
	}
	var target *meeting.Participant
	for i := range snapshot {
		p := snapshot[i]
		if p.IsSelf || p.Status != meeting.StatusAttending || p.IsAudioMuted ||
			p.AudioDevice != meeting.AudioComputer || !e.dir.IsKnown(p.Name) {
			continue
		}
		target = &snapshot[i]
		break
	}
	if target == nil || !e.sess.Admission.ClaimFirstGreeting() {
		return
	}
	slog.Info("Greeting first participant", "participant", target.Name)

	if e.speaker != nil && flags.Has(automation.Speak) {
		if cfg.Bot.StartupSound != "" {
			if err := e.speaker.Play(ctx, cfg.Bot.StartupSound); err != nil {
				slog.Warn("Startup sound failed", "error", err)
			}
		}
		e.sleep(ctx, cfg.Bot.GreetingPause)
		if err := e.speaker.Speak(ctx, cfg.Bot.Name+" online."); err != nil {
			slog.Warn("Startup announcement failed", "error", err)
		}
	}

	greeting, ok := e.sess.Chat.OneTimeHi(target.ID, "morning", cfg.Chat.OneTimeHiSequences)
	if !ok {
		slog.Debug("No one-time greeting configured for first participant")
		return
	}
	if err := e.ctl.Send(ctx, meeting.Everyone, textutil.FormatResponse(greeting, target.Name, now)); err != nil {
		slog.Warn("First greeting failed", "error", err)
	}
}

// OnJoinWaitingRoom admits a known participant as soon as they arrive.
func (e *Engine) OnJoinWaitingRoom(ctx context.Context, p meeting.Participant) bool {
	flags := e.modes.Flags()
	if !flags.Has(automation.ProcessParticipants) || !flags.Has(automation.AdmitKnown) {
		return false
	}
	if p.IsSelf || !e.dir.IsKnown(p.Name) {
		return false
	}
	return e.admit(ctx, p, map[string]any{"reason": "known", "trigger": "join"})
}

// OnJoinMeeting promotes an arriving admin under the same rule as the tick.
func (e *Engine) OnJoinMeeting(ctx context.Context, p meeting.Participant) bool {
	flags := e.modes.Flags()
	if !flags.Has(automation.ProcessParticipants) || p.IsSelf {
		return false
	}
	self, ok := e.source.Self()
	if !ok {
		return false
	}
	if flags.Has(automation.CoHostKnown) && !self.IsHost && e.dir.IsAdmin(p.Name) {
		slog.Warn("Participant should be co-host but I am not host", "participant", p.Name)
		return false
	}
	if !e.shouldPromote(flags, self, p) {
		return false
	}
	return e.promote(ctx, p, "join")
}

func (e *Engine) publish(kind, subject, text string, meta map[string]any) {
	if e.notices == nil {
		return
	}
	e.notices.PublishNotice(&bus.Notice{Kind: kind, Subject: subject, Text: text, Metadata: meta})
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

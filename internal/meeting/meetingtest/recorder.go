// Package meetingtest provides an in-memory meeting platform for tests.
package meetingtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/usherbot/usherbot/internal/meeting"
)

// ErrRefused is returned for actions configured to fail.
var ErrRefused = errors.New("refused")

// Call is one recorded action.
type Call struct {
	Action string
	Target string
	Arg    string
}

// Sent is one recorded chat message.
type Sent struct {
	To   meeting.Recipient
	Text string
}

// Recorder implements meeting.Controller and meeting.Speaker on top of a
// Roster and records every request.
type Recorder struct {
	Roster *meeting.Roster

	mu     sync.Mutex
	calls  []Call
	sent   []Sent
	spoken []string
	played []string
	fail   map[string]error
}

func New() *Recorder {
	return &Recorder{Roster: meeting.NewRoster(), fail: map[string]error{}}
}

// Fail makes every later call of action return err (ErrRefused when nil).
func (r *Recorder) Fail(action string, err error) {
	if err == nil {
		err = ErrRefused
	}
	r.mu.Lock()
	r.fail[action] = err
	r.mu.Unlock()
}

// Succeed clears a failure set by Fail.
func (r *Recorder) Succeed(action string) {
	r.mu.Lock()
	delete(r.fail, action)
	r.mu.Unlock()
}

func (r *Recorder) record(action, target, arg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Action: action, Target: target, Arg: arg})
	return r.fail[action]
}

// Calls returns recorded actions, optionally filtered by name.
func (r *Recorder) Calls(action string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if action == "" || c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Sent returns every chat message sent.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns the texts sent to one recipient.
func (r *Recorder) SentTo(to meeting.Recipient) []string {
	var out []string
	for _, s := range r.Sent() {
		if s.To == to {
			out = append(out, s.Text)
		}
	}
	return out
}

func (r *Recorder) Spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

func (r *Recorder) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}

func (r *Recorder) Admit(_ context.Context, p meeting.Participant) error {
	if err := r.record("admit", p.ID, ""); err != nil {
		return err
	}
	r.Roster.Update(p.ID, func(x *meeting.Participant) { x.Status = meeting.StatusAttending })
	return nil
}

func (r *Recorder) Promote(_ context.Context, p meeting.Participant, role meeting.Role) error {
	if err := r.record("promote", p.ID, string(role)); err != nil {
		return err
	}
	r.Roster.Update(p.ID, func(x *meeting.Participant) {
		if role == meeting.RoleHost {
			x.IsHost = true
		} else {
			x.IsCoHost = true
		}
	})
	return nil
}

func (r *Recorder) Demote(_ context.Context, p meeting.Participant) error {
	if err := r.record("demote", p.ID, ""); err != nil {
		return err
	}
	r.Roster.Update(p.ID, func(x *meeting.Participant) { x.IsCoHost = false })
	return nil
}

func (r *Recorder) Mute(_ context.Context, p meeting.Participant) error {
	return r.record("mute", p.ID, "")
}

func (r *Recorder) Unmute(_ context.Context, p meeting.Participant) error {
	return r.record("unmute", p.ID, "")
}

func (r *Recorder) Rename(_ context.Context, p meeting.Participant, newName string) error {
	if err := r.record("rename", p.ID, newName); err != nil {
		return err
	}
	r.Roster.Update(p.ID, func(x *meeting.Participant) { x.Name = newName })
	return nil
}

func (r *Recorder) Send(_ context.Context, to meeting.Recipient, text string) error {
	if err := r.record("send", string(to), text); err != nil {
		return err
	}
	r.mu.Lock()
	r.sent = append(r.sent, Sent{To: to, Text: text})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Leave(_ context.Context, endForAll bool) error {
	return r.record("leave", "", fmt.Sprint(endForAll))
}

func (r *Recorder) ReclaimHost(_ context.Context) error {
	if err := r.record("reclaim_host", "", ""); err != nil {
		return err
	}
	if self, ok := r.Roster.Self(); ok {
		r.Roster.Update(self.ID, func(x *meeting.Participant) { x.IsHost = true })
	}
	return nil
}

func (r *Recorder) Speak(_ context.Context, text string) error {
	if err := r.record("speak", "", text); err != nil {
		return err
	}
	r.mu.Lock()
	r.spoken = append(r.spoken, text)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Play(_ context.Context, sound string) error {
	if err := r.record("play", "", sound); err != nil {
		return err
	}
	r.mu.Lock()
	r.played = append(r.played, sound)
	r.mu.Unlock()
	return nil
}

var (
	_ meeting.Controller = (*Recorder)(nil)
	_ meeting.Speaker    = (*Recorder)(nil)
)

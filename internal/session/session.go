// Package session holds the mutable state that lives for one bot run:
// admission throttling, broadcast guards, one-time greetings, the topic
// and the waiting-room message. State is split in two groups, each behind
// its own lock: admission state used by the tick, and chat state used by
// message handling.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/usherbot/usherbot/internal/textutil"
)

// Session is created once per process and passed to every component.
type Session struct {
	Admission *AdmissionState
	Chat      *ChatState
}

func New() *Session {
	return &Session{
		Admission: &AdmissionState{pending: map[string]string{}, admitting: map[string]time.Time{}},
		Chat: &ChatState{
			greetings: map[string]string{},
			broadcast: map[string]time.Time{},
		},
	}
}

// AdmissionState tracks unknown-participant throttling and the
// once-per-run announcements made by the admission engine.
type AdmissionState struct {
	mu               sync.Mutex
	lastAdmission    time.Time
	pending          map[string]string
	admitting        map[string]time.Time
	lastAnnouncement time.Time
	firstGreeted     bool
}

// WhenEligible is the earliest time an unknown participant waiting since
// waitingSince may be admitted.
func (a *AdmissionState) WhenEligible(waitingSince time.Time, wait, throttle time.Duration) time.Time {
	a.mu.Lock()
	last := a.lastAdmission
	a.mu.Unlock()

	own := waitingSince.Add(wait)
	global := last.Add(throttle)
	if global.After(own) {
		return global
	}
	return own
}

// NotePending remembers the pending message for a participant and reports
// whether it differs from the last one noted.
func (a *AdmissionState) NotePending(id, msg string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending[id] == msg {
		return false
	}
	a.pending[id] = msg
	return true
}

// RecordAdmission advances the throttle clock and forgets the pending
// message for the admitted participant.
func (a *AdmissionState) RecordAdmission(id string, now time.Time) {
	a.mu.Lock()
	a.lastAdmission = now
	delete(a.pending, id)
	a.mu.Unlock()
}

// ClaimAdmit reserves the admission of participant id for the waiting-room
// stay that began at since. It returns false when that stay was already
// claimed, so the tick and the join handler never both admit.
func (a *AdmissionState) ClaimAdmit(id string, since time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.admitting[id]; ok && prev.Equal(since) {
		return false
	}
	a.admitting[id] = since
	return true
}

// ReleaseAdmit drops a claim after a failed admission.
func (a *AdmissionState) ReleaseAdmit(id string) {
	a.mu.Lock()
	delete(a.admitting, id)
	a.mu.Unlock()
}

func (a *AdmissionState) LastAdmission() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAdmission
}

// AnnouncementDue reports whether delay has passed since the last
// waiting-room announcement.
func (a *AdmissionState) AnnouncementDue(delay time.Duration, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAnnouncement.IsZero() || !now.Before(a.lastAnnouncement.Add(delay))
}

func (a *AdmissionState) RecordAnnouncement(now time.Time) {
	a.mu.Lock()
	a.lastAnnouncement = now
	a.mu.Unlock()
}

// ClaimFirstGreeting returns true exactly once per run.
func (a *AdmissionState) ClaimFirstGreeting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.firstGreeted {
		return false
	}
	a.firstGreeted = true
	return true
}

func (a *AdmissionState) FirstGreetingDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstGreeted
}

// GuardResult is the outcome of a broadcast guard check.
type GuardResult int

const (
	GuardAllowed GuardResult = iota
	GuardAlreadySent
	GuardTooSoon
)

// ChatState is the state touched by chat handling.
type ChatState struct {
	mu        sync.Mutex
	topic     string
	waitMsg   string
	greetings map[string]string
	broadcast map[string]time.Time
}

// Topic returns the current topic, empty when unset.
func (c *ChatState) Topic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

// UpdateTopic runs fn with the current topic under the chat lock and
// stores the topic it returns.
func (c *ChatState) UpdateTopic(fn func(current string) string) {
	c.mu.Lock()
	c.topic = fn(c.topic)
	c.mu.Unlock()
}

func (c *ChatState) WaitingMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitMsg
}

// SetWaitingMessage stores msg and reports whether it changed.
func (c *ChatState) SetWaitingMessage(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitMsg == msg {
		return false
	}
	c.waitMsg = msg
	return true
}

// OneTimeHi looks up the words of text in table and returns the first
// greeting found, at most once per participant id. Later calls for the
// same id return false whatever the text.
func (c *ChatState) OneTimeHi(id, text string, table map[string]string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.greetings[id]; done {
		return "", false
	}
	for _, word := range textutil.Words(text) {
		if resp, ok := table[strings.ToLower(word)]; ok {
			c.greetings[id] = resp
			return resp, true
		}
	}
	return "", false
}

// Greeted reports whether id already received its one-time greeting.
func (c *ChatState) Greeted(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.greetings[id]
	return ok
}

// ClaimBroadcast applies the broadcast guard for cmd and, when the send is
// allowed, records now as its send time under the same lock. A negative
// guard allows one send per run, zero never throttles, a positive guard is
// the minimum interval between sends. The returned release undoes the claim
// and is nil unless the result is GuardAllowed.
func (c *ChatState) ClaimBroadcast(cmd string, guard time.Duration, now time.Time) (GuardResult, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, hadPrev := c.broadcast[cmd]
	if hadPrev {
		switch {
		case guard < 0:
			return GuardAlreadySent, nil
		case guard > 0 && !now.After(prev.Add(guard)):
			return GuardTooSoon, nil
		}
	}
	c.broadcast[cmd] = now
	release := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.broadcast[cmd]; !ok || !cur.Equal(now) {
			return
		}
		if hadPrev {
			c.broadcast[cmd] = prev
		} else {
			delete(c.broadcast, cmd)
		}
	}
	return GuardAllowed, release
}

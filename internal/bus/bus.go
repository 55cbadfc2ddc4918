// Package bus decouples the meeting bridge from the bot core. Platform
// events flow in; operator notices flow out to subscribers such as the
// audit timeline and the Slack notifier.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/usherbot/usherbot/internal/meeting"
)

// Notice kinds.
const (
	NoticeMode      = "mode"
	NoticeAdmission = "admission"
	NoticePromotion = "promotion"
	NoticeRemote    = "remote"
	NoticeLifecycle = "lifecycle"
	NoticeCommand   = "command"
)

// Notice is an outbound record of something the bot did.
type Notice struct {
	Kind     string         `json:"kind"`
	TraceID  string         `json:"trace_id,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// MessageBus carries inbound meeting events and outbound notices.
type MessageBus struct {
	events  chan *meeting.Event
	notices chan *Notice
	subs    []func(*Notice)
	mu      sync.RWMutex
}

// NewMessageBus creates a bus with buffered queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		events:  make(chan *meeting.Event, 100),
		notices: make(chan *Notice, 100),
	}
}

// PublishEvent queues a platform event, blocking while the queue is full.
func (b *MessageBus) PublishEvent(ev *meeting.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.events <- ev
}

// ConsumeEvent blocks until an event is available or ctx is cancelled.
func (b *MessageBus) ConsumeEvent(ctx context.Context) (*meeting.Event, error) {
	select {
	case ev := <-b.events:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishNotice queues a notice. Notices are dropped rather than blocking
// the caller when nobody drains the queue.
func (b *MessageBus) PublishNotice(n *Notice) bool {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	select {
	case b.notices <- n:
		return true
	default:
		return false
	}
}

// Subscribe registers a callback for every notice.
func (b *MessageBus) Subscribe(cb func(*Notice)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, cb)
}

// DispatchNotices delivers notices to subscribers until ctx is cancelled.
// Run it as a goroutine.
func (b *MessageBus) DispatchNotices(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-b.notices:
			b.mu.RLock()
			callbacks := b.subs
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(n)
			}
		}
	}
}

// EventBacklog returns the number of queued events.
func (b *MessageBus) EventBacklog() int {
	return len(b.events)
}

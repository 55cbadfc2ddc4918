package meeting

import "time"

// EventType names a platform notification.
type EventType string

const (
	EventJoinedWaitingRoom EventType = "participant.joined_waiting_room"
	EventLeftWaitingRoom   EventType = "participant.left_waiting_room"
	EventJoinedMeeting     EventType = "participant.joined_meeting"
	EventLeftMeeting       EventType = "participant.left_meeting"
	EventUpdated           EventType = "participant.updated"
	EventChatMessage       EventType = "chat.message"
)

// ChatMessage is one inbound chat line.
type ChatMessage struct {
	From      Participant
	To        Recipient
	Text      string
	IsPrivate bool
}

// Event is a platform notification after the roster has been updated.
type Event struct {
	Type        EventType
	Participant Participant
	Chat        *ChatMessage
	TraceID     string
	At          time.Time
}

// Apply folds a participant event into the roster.
func (r *Roster) Apply(ev Event) {
	p := ev.Participant
	switch ev.Type {
	case EventJoinedWaitingRoom:
		p.Status = StatusWaiting
		if p.WaitingSince.IsZero() {
			p.WaitingSince = ev.At
		}
		r.Upsert(p)
	case EventJoinedMeeting:
		p.Status = StatusAttending
		r.Upsert(p)
	case EventUpdated:
		r.merge(p, ev.At)
	case EventLeftWaitingRoom, EventLeftMeeting:
		r.Remove(p.ID)
	}
}

// merge stores an update on top of the known participant. Drivers may omit
// the status and the waiting-room timestamp from updates; the stored values
// are kept then.
func (r *Roster) merge(p Participant, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, known := r.byID[p.ID]
	if !known {
		r.order = append(r.order, p.ID)
	}
	if p.Status == StatusUnknown && known {
		p.Status = old.Status
	}
	r.byID[p.ID] = keepWaitingSince(p, old, known, at)
}

func keepWaitingSince(p, old Participant, known bool, at time.Time) Participant {
	if p.Status != StatusWaiting || !p.WaitingSince.IsZero() {
		return p
	}
	if known && old.Status == StatusWaiting && !old.WaitingSince.IsZero() {
		p.WaitingSince = old.WaitingSince
	} else {
		p.WaitingSince = at
	}
	return p
}

// Replace swaps in a full participant list. Waiting participants without a
// timestamp keep the one already stored, or get at.
func (r *Roster) Replace(ps []Participant, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.byID
	r.byID = make(map[string]Participant, len(ps))
	r.order = r.order[:0]
	for _, p := range ps {
		if p.ID == "" {
			continue
		}
		if _, dup := r.byID[p.ID]; !dup {
			r.order = append(r.order, p.ID)
		}
		old, known := prev[p.ID]
		r.byID[p.ID] = keepWaitingSince(p, old, known, at)
	}
}

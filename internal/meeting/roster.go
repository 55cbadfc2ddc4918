package meeting

import (
	"fmt"
	"sync"
)

// Roster is a thread-safe participant collection kept current by the
// platform adapter. It implements ParticipantSource.
type Roster struct {
	mu    sync.RWMutex
	byID  map[string]Participant
	order []string
}

func NewRoster() *Roster {
	return &Roster{byID: map[string]Participant{}}
}

// Upsert inserts or replaces a participant, keeping join order.
func (r *Roster) Upsert(p Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// Remove drops a participant. It reports whether one was present.
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Update applies fn to a participant in place.
func (r *Roster) Update(id string, fn func(*Participant)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	fn(&p)
	r.byID[id] = p
	return true
}

func (r *Roster) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Roster) Self() (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if p := r.byID[id]; p.IsSelf {
			return p, true
		}
	}
	return Participant{}, false
}

// ByName matches display names exactly; case matters.
func (r *Roster) ByName(name string) (Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		match Participant
		count int
	)
	for _, id := range r.order {
		if p := r.byID[id]; p.Name == name {
			match = p
			count++
		}
	}
	switch count {
	case 0:
		return Participant{}, fmt.Errorf("%w: %q", ErrNoParticipant, name)
	case 1:
		return match, nil
	default:
		return Participant{}, fmt.Errorf("%w: %q", ErrAmbiguousParticipant, name)
	}
}

func (r *Roster) ByID(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Len is the number of participants.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

package meeting

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRosterByName(t *testing.T) {
	r := NewRoster()
	r.Upsert(Participant{ID: "1", Name: "John Doe"})
	r.Upsert(Participant{ID: "2", Name: "Jane"})
	r.Upsert(Participant{ID: "3", Name: "Jane"})

	p, err := r.ByName("John Doe")
	require.NoError(t, err)
	require.Equal(t, "1", p.ID)

	_, err = r.ByName("john doe")
	require.True(t, errors.Is(err, ErrNoParticipant))

	_, err = r.ByName("Jane")
	require.True(t, errors.Is(err, ErrAmbiguousParticipant))
}

func TestRosterApplyEvents(t *testing.T) {
	r := NewRoster()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	r.Apply(Event{Type: EventJoinedWaitingRoom, Participant: Participant{ID: "7", Name: "Guest"}, At: at})
	p, ok := r.ByID("7")
	require.True(t, ok)
	require.Equal(t, StatusWaiting, p.Status)
	require.Equal(t, at, p.WaitingSince)

	r.Apply(Event{Type: EventLeftWaitingRoom, Participant: p})
	r.Apply(Event{Type: EventJoinedMeeting, Participant: Participant{ID: "7", Name: "Guest"}})
	p, _ = r.ByID("7")
	require.Equal(t, StatusAttending, p.Status)

	r.Apply(Event{Type: EventLeftMeeting, Participant: p})
	require.Equal(t, 0, r.Len())
}

func TestRosterUpdateKeepsWaitingState(t *testing.T) {
	r := NewRoster()
	joined := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	r.Apply(Event{Type: EventJoinedWaitingRoom, Participant: Participant{ID: "7", Name: "Guest"}, At: joined})
	r.Apply(Event{Type: EventUpdated, Participant: Participant{ID: "7", Name: "Guest (iPad)", IsVideoOn: true}, At: joined.Add(time.Minute)})

	p, ok := r.ByID("7")
	require.True(t, ok)
	require.Equal(t, StatusWaiting, p.Status)
	require.Equal(t, joined, p.WaitingSince)
	require.Equal(t, "Guest (iPad)", p.Name)
	require.True(t, p.IsVideoOn)

	r.Apply(Event{Type: EventUpdated, Participant: Participant{ID: "7", Name: "Guest", Status: StatusAttending}, At: joined.Add(2 * time.Minute)})
	p, _ = r.ByID("7")
	require.Equal(t, StatusAttending, p.Status)

	r.Apply(Event{Type: EventUpdated, Participant: Participant{ID: "8", Name: "Late", Status: StatusWaiting}, At: joined.Add(3 * time.Minute)})
	p, _ = r.ByID("8")
	require.Equal(t, joined.Add(3*time.Minute), p.WaitingSince)
}

func TestRosterReplaceKeepsWaitingSince(t *testing.T) {
	r := NewRoster()
	joined := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	later := joined.Add(time.Hour)
	r.Upsert(Participant{ID: "w", Name: "Walt", Status: StatusWaiting, WaitingSince: joined})
	r.Upsert(Participant{ID: "gone", Name: "Gone"})

	r.Replace([]Participant{
		{ID: "w", Name: "Walt", Status: StatusWaiting},
		{ID: "n", Name: "New", Status: StatusWaiting},
		{Name: "no id"},
	}, later)

	require.Equal(t, 2, r.Len())
	w, _ := r.ByID("w")
	require.Equal(t, joined, w.WaitingSince)
	n, _ := r.ByID("n")
	require.Equal(t, later, n.WaitingSince)
	_, ok := r.ByID("gone")
	require.False(t, ok)
}

func TestRosterSelfAndOrder(t *testing.T) {
	r := NewRoster()
	r.Upsert(Participant{ID: "a", Name: "A"})
	r.Upsert(Participant{ID: "bot", Name: "UsherBot", IsSelf: true})
	r.Upsert(Participant{ID: "c", Name: "C"})
	r.Upsert(Participant{ID: "a", Name: "A renamed"})

	self, ok := r.Self()
	require.True(t, ok)
	require.Equal(t, "bot", self.ID)

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "A renamed", snap[0].Name)

	require.True(t, r.Update("c", func(p *Participant) { p.IsCoHost = true }))
	require.False(t, r.Update("zz", func(p *Participant) {}))
	c, _ := r.ByID("c")
	require.True(t, c.IsPrivileged())
}

func TestRosterConcurrentSnapshots(t *testing.T) {
	r := NewRoster()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			r.Upsert(Participant{ID: id})
			r.Remove(id)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	require.Equal(t, 0, r.Len())
}

func TestStatusJSON(t *testing.T) {
	data, err := StatusWaiting.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"waiting"`, string(data))

	var s Status
	require.NoError(t, s.UnmarshalJSON([]byte(`"attending"`)))
	require.Equal(t, StatusAttending, s)
	require.Error(t, s.UnmarshalJSON([]byte(`"gone"`)))
}

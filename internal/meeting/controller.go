package meeting

import (
	"context"
	"errors"
)

var (
	// ErrNoParticipant means a name lookup matched nobody.
	ErrNoParticipant = errors.New("no participant with that name")
	// ErrAmbiguousParticipant means a name lookup matched more than one participant.
	ErrAmbiguousParticipant = errors.New("more than one participant with that name")
	// ErrClosed is raised by the platform once the meeting can no longer be driven.
	ErrClosed = errors.New("meeting closed")
)

// Controller is the set of moderation actions the bot can request. A
// non-nil error means the action did not take effect; callers report it
// and carry on.
type Controller interface {
	Admit(ctx context.Context, p Participant) error
	Promote(ctx context.Context, p Participant, role Role) error
	Demote(ctx context.Context, p Participant) error
	Mute(ctx context.Context, p Participant) error
	Unmute(ctx context.Context, p Participant) error
	Rename(ctx context.Context, p Participant, newName string) error
	Send(ctx context.Context, to Recipient, text string) error
	Leave(ctx context.Context, endForAll bool) error
	ReclaimHost(ctx context.Context) error
}

// Speaker plays audio into the meeting.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Play(ctx context.Context, sound string) error
}

// ParticipantSource is the read side of the platform.
type ParticipantSource interface {
	// Snapshot returns a consistent copy of every participant.
	Snapshot() []Participant
	// Self returns the bot's own participant record.
	Self() (Participant, bool)
	// ByName finds exactly one participant by display name.
	ByName(name string) (Participant, error)
	// ByID finds a participant by id.
	ByID(id string) (Participant, bool)
}

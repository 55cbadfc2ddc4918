// Package meeting models the external meeting platform as the bot sees it:
// a read-only participant snapshot, the actions the bot may request and
// the events the platform raises.
package meeting

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a participant's membership state.
type Status int

const (
	StatusUnknown Status = iota
	StatusWaiting
	StatusAttending
)

var statusNames = map[Status]string{
	StatusUnknown:   "unknown",
	StatusWaiting:   "waiting",
	StatusAttending: "attending",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for k, v := range statusNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown participant status %q", name)
}

// AudioDevice is how a participant is connected to the meeting audio.
type AudioDevice string

const (
	AudioNone     AudioDevice = "none"
	AudioComputer AudioDevice = "computer"
	AudioPhone    AudioDevice = "phone"
)

// Participant is a point-in-time copy of one meeting member.
type Participant struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Status       Status      `json:"status"`
	IsSelf       bool        `json:"isSelf,omitempty"`
	IsHost       bool        `json:"isHost,omitempty"`
	IsCoHost     bool        `json:"isCoHost,omitempty"`
	IsAudioMuted bool        `json:"isAudioMuted,omitempty"`
	AudioDevice  AudioDevice `json:"audioDevice,omitempty"`
	IsVideoOn    bool        `json:"isVideoOn,omitempty"`
	WaitingSince time.Time   `json:"waitingSince,omitzero"`
}

// IsPrivileged is true for host and co-host.
func (p Participant) IsPrivileged() bool { return p.IsHost || p.IsCoHost }

func (p Participant) String() string {
	return fmt.Sprintf("%q(%s)", p.Name, p.ID)
}

// Role is a meeting privilege level that can be granted.
type Role string

const (
	RoleCoHost Role = "cohost"
	RoleHost   Role = "host"
)

// Recipient addresses a chat message: one participant id or a special
// group target.
type Recipient string

const (
	Everyone    Recipient = "everyone"
	WaitingRoom Recipient = "waiting_room"
)

// To addresses a single participant.
func To(p Participant) Recipient { return Recipient(p.ID) }

// IsGroup is true for the special group targets.
func (r Recipient) IsGroup() bool { return r == Everyone || r == WaitingRoom }

// Package automation holds the bot's automation capabilities and the
// composite moderation modes derived from them.
package automation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Flags is a set of independent automation capabilities.
type Flags uint16

const (
	SendTopicOnJoin Flags = 1 << iota
	RenameSelf
	ReclaimHost
	ProcessParticipants
	ProcessChat
	CoHostKnown
	AdmitKnown
	AdmitOthers
	Converse
	Speak
	UnmuteSelf

	None Flags = 0
	All  Flags = SendTopicOnJoin | RenameSelf | ReclaimHost | ProcessParticipants |
		ProcessChat | CoHostKnown | AdmitKnown | AdmitOthers | Converse | Speak | UnmuteSelf
)

// Subsets backing the composite modes.
const (
	CitadelMask  = AdmitOthers
	LockdownMask = AdmitOthers | AdmitKnown | CoHostKnown
)

// flagNames is the stable serialization order.
var flagNames = []struct {
	flag Flags
	name string
}{
	{SendTopicOnJoin, "SendTopicOnJoin"},
	{RenameSelf, "RenameSelf"},
	{ReclaimHost, "ReclaimHost"},
	{ProcessParticipants, "ProcessParticipants"},
	{ProcessChat, "ProcessChat"},
	{CoHostKnown, "CoHostKnown"},
	{AdmitKnown, "AdmitKnown"},
	{AdmitOthers, "AdmitOthers"},
	{Converse, "Converse"},
	{Speak, "Speak"},
	{UnmuteSelf, "UnmuteSelf"},
}

// Has reports whether every flag in f2 is set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// NoneOf reports whether no flag in f2 is set.
func (f Flags) NoneOf(f2 Flags) bool { return f&f2 == 0 }

func (f Flags) With(f2 Flags) Flags    { return f | f2 }
func (f Flags) Without(f2 Flags) Flags { return f &^ f2 }

// Citadel is true when unknown participants are never admitted.
func (f Flags) Citadel() bool { return f.NoneOf(CitadelMask) }

// Lockdown is true when no automatic admission or co-hosting happens.
func (f Flags) Lockdown() bool { return f.NoneOf(LockdownMask) }

// Passive is true when every capability is disabled.
func (f Flags) Passive() bool { return f == None }

// Names returns the set flags in stable order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (f Flags) String() string {
	if f == None {
		return "None"
	}
	if f == All {
		return "All"
	}
	return strings.Join(f.Names(), "|")
}

// ParseFlags converts a list of flag names into a set. "All" and "None" are
// accepted as shorthands; names are case-insensitive.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		switch {
		case name == "":
			continue
		case strings.EqualFold(name, "all"):
			f |= All
			continue
		case strings.EqualFold(name, "none"):
			continue
		}
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(fn.name, name) {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("unknown automation flag %q", name)
		}
	}
	return f, nil
}

// MarshalJSON writes the flags as a list of names.
func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Names())
}

// UnmarshalJSON accepts a list of names or a single "A|B" string.
func (f *Flags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		var joined string
		if err2 := json.Unmarshal(data, &joined); err2 != nil {
			return fmt.Errorf("automation flags: %w", err)
		}
		names = strings.Split(joined, "|")
	}
	parsed, err := ParseFlags(names)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Decode lets envconfig read a comma or pipe separated list.
func (f *Flags) Decode(value string) error {
	parsed, err := ParseFlags(strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '|' }))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

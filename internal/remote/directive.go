// Package remote reads out-of-band operator directives from the command
// file and, optionally, a Kafka topic.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/usherbot/usherbot/internal/automation"
)

// ErrUnknownDirective is returned for lines that are not a directive.
var ErrUnknownDirective = errors.New("unknown directive")

// Kind identifies a directive.
type Kind int

const (
	// KindMode switches a named mode on or off.
	KindMode Kind = iota
	// KindExit leaves the meeting gracefully and shuts down.
	KindExit
	// KindKill ends the meeting for everyone.
	KindKill
)

// Directive is one parsed command line.
type Directive struct {
	Kind Kind
	Mode string
	On   bool
	Raw  string
}

func (d Directive) String() string { return d.Raw }

var modeDirectives = map[string]string{
	"citadel":  automation.ModeCitadel,
	"lockdown": automation.ModeLockdown,
	"debug":    automation.ModeDebug,
	"pause":    automation.ModePause,
	"passive":  automation.ModePassive,
}

// ParseDirective parses one line. Keywords are case-sensitive; surrounding
// whitespace is ignored.
func ParseDirective(line string) (Directive, error) {
	raw := strings.TrimSpace(line)
	switch raw {
	case "exit":
		return Directive{Kind: KindExit, Raw: raw}, nil
	case "kill":
		return Directive{Kind: KindKill, Raw: raw}, nil
	}
	name, state, ok := strings.Cut(raw, ":")
	if !ok {
		return Directive{}, fmt.Errorf("%w: %q", ErrUnknownDirective, raw)
	}
	mode, known := modeDirectives[name]
	if !known {
		return Directive{}, fmt.Errorf("%w: %q", ErrUnknownDirective, raw)
	}
	switch state {
	case "on":
		return Directive{Kind: KindMode, Mode: mode, On: true, Raw: raw}, nil
	case "off":
		return Directive{Kind: KindMode, Mode: mode, On: false, Raw: raw}, nil
	}
	return Directive{}, fmt.Errorf("%w: %q", ErrUnknownDirective, raw)
}

// Source yields raw directive lines queued since the last drain.
type Source interface {
	Name() string
	Drain(ctx context.Context) ([]string, error)
}

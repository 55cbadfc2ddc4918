package automation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Mode names accepted by SetMode.
const (
	ModeCitadel  = "citadel"
	ModeLockdown = "lockdown"
	ModePassive  = "passive"
	ModeDebug    = "debug"
	ModePause    = "pause"
)

// ModeNames lists every mode in display order.
var ModeNames = []string{ModeCitadel, ModeLockdown, ModePassive, ModeDebug, ModePause}

// ErrUnknownMode is returned for mode names the registry does not know.
var ErrUnknownMode = errors.New("unknown mode")

// ChangeFunc observes a committed mode transition.
type ChangeFunc func(mode string, on bool)

// Registry owns the live automation flags plus the debug and pause switches.
type Registry struct {
	mu       sync.Mutex
	flags    Flags
	debug    bool
	paused   bool
	level    *slog.LevelVar
	onChange ChangeFunc
}

// NewRegistry creates a registry seeded with flags. When level is non-nil,
// debug mode moves it between Info and Debug.
func NewRegistry(flags Flags, level *slog.LevelVar) *Registry {
	return &Registry{flags: flags, level: level}
}

// OnChange installs a callback fired after every committed transition.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Reset replaces all state, typically after a settings reload.
func (r *Registry) Reset(flags Flags, debug, paused bool) {
	r.mu.Lock()
	r.flags = flags
	r.debug = debug
	r.paused = paused
	r.applyLevel()
	r.mu.Unlock()
}

func (r *Registry) Flags() Flags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags
}

// Enabled reports whether every flag in f is currently set.
func (r *Registry) Enabled(f Flags) bool {
	return r.Flags().Has(f)
}

func (r *Registry) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Registry) Debug() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debug
}

// Mode reports the current state of a named mode.
func (r *Registry) Mode(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modeLocked(name)
}

func (r *Registry) modeLocked(name string) (bool, error) {
	switch name {
	case ModeCitadel:
		return r.flags.Citadel(), nil
	case ModeLockdown:
		return r.flags.Lockdown(), nil
	case ModePassive:
		return r.flags.Passive(), nil
	case ModeDebug:
		return r.debug, nil
	case ModePause:
		return r.paused, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownMode, name)
}

// SetMode moves the named mode to the desired state. It reports false
// without touching anything when the mode is already in that state.
func (r *Registry) SetMode(name string, on bool) (bool, error) {
	r.mu.Lock()
	current, err := r.modeLocked(name)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}
	if current == on {
		r.mu.Unlock()
		return false, nil
	}

	switch name {
	case ModeCitadel:
		r.flags = toggleComposite(r.flags, CitadelMask, on)
	case ModeLockdown:
		r.flags = toggleComposite(r.flags, LockdownMask, on)
	case ModePassive:
		if on {
			r.flags = None
		} else {
			r.flags = All
		}
	case ModeDebug:
		r.debug = on
		r.applyLevel()
	case ModePause:
		r.paused = on
	}
	flags := r.flags
	fn := r.onChange
	r.mu.Unlock()

	slog.Info("Mode changed", "mode", name, "state", onOff(on), "flags", flags.String())
	if fn != nil {
		fn(name, on)
	}
	return true, nil
}

// toggleComposite flips the mask flags so that the derived "mask entirely
// absent" state becomes on. Turning the mode on clears the whole mask;
// turning it off sets the whole mask.
func toggleComposite(f, mask Flags, on bool) Flags {
	if f.Has(mask) || f.NoneOf(mask) {
		return f ^ mask
	}
	if on {
		return f.Without(mask)
	}
	return f.With(mask)
}

func (r *Registry) applyLevel() {
	if r.level == nil {
		return
	}
	if r.debug {
		r.level.Set(slog.LevelDebug)
	} else {
		r.level.Set(slog.LevelInfo)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

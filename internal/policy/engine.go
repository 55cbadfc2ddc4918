// Package policy decides who may run chat commands.
package policy

import (
	"fmt"
	"time"
)

// Command tiers.
const (
	// TierOpen commands may be run by anyone, addressed anywhere.
	TierOpen = 0
	// TierAdmin commands need a direct message from a directory admin.
	TierAdmin = 1
)

// Context describes one command attempt.
type Context struct {
	Sender  string
	Command string
	Tier    int
	// Direct is true when the message was addressed to the bot alone.
	Direct  bool
	TraceID string
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Allow   bool
	Reason  string
	Tier    int
	Ts      time.Time
	TraceID string
}

// Engine evaluates whether a command should run.
type Engine interface {
	Evaluate(ctx Context) Decision
}

// AdminChecker reports whether a display name belongs to an admin.
type AdminChecker interface {
	IsAdmin(name string) bool
}

// DirectoryEngine grants admin-tier commands to directory admins.
type DirectoryEngine struct {
	Admins AdminChecker
}

func NewDirectoryEngine(admins AdminChecker) *DirectoryEngine {
	return &DirectoryEngine{Admins: admins}
}

// TierFor classifies a command. Only the bare topic query is open.
func TierFor(command, arg string) int {
	if command == "topic" && arg == "" {
		return TierOpen
	}
	return TierAdmin
}

func (e *DirectoryEngine) Evaluate(ctx Context) Decision {
	d := Decision{
		Tier:    ctx.Tier,
		Ts:      time.Now(),
		TraceID: ctx.TraceID,
	}

	if ctx.Tier == TierOpen {
		d.Allow = true
		d.Reason = "tier_0_open"
		return d
	}
	if !ctx.Direct {
		d.Reason = fmt.Sprintf("tier_%d_requires_direct_message", ctx.Tier)
		return d
	}
	if e.Admins == nil || !e.Admins.IsAdmin(ctx.Sender) {
		d.Reason = fmt.Sprintf("sender_not_admin: %s", ctx.Sender)
		return d
	}
	d.Allow = true
	d.Reason = fmt.Sprintf("tier_%d_admin", ctx.Tier)
	return d
}

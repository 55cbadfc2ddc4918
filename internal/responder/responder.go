// Package responder implements the conversational fallback chain: an
// ordered list of responders asked in turn for a reply to small talk.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/usherbot/usherbot/internal/config"
)

// Info describes a responder.
type Info struct {
	Name string
	// IntelligenceLevel orders the chain; higher is consulted first.
	IntelligenceLevel int
	// Canned responders answer from fixed tables and stay available when
	// conversation is turned off.
	Canned bool
}

// InitContext carries what a responder needs to initialise.
type InitContext struct {
	BotName  string
	Chat     config.ChatConfig
	Provider config.ProviderConfig
	Params   map[string]string
}

// Responder is one conversational capability. Converse returns an empty
// string when it has nothing to say.
type Responder interface {
	Info() Info
	Init(ic InitContext) error
	Start(ctx context.Context) error
	Stop() error
	Converse(ctx context.Context, text, from string) (string, error)
}

// Chain asks responders in descending intelligence order and returns the
// first non-empty reply.
type Chain struct {
	responders []Responder
}

// NewChain sorts rs by intelligence, keeping the given order for ties.
func NewChain(rs ...Responder) *Chain {
	sorted := append([]Responder(nil), rs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Info().IntelligenceLevel > sorted[j].Info().IntelligenceLevel
	})
	return &Chain{responders: sorted}
}

// Len is the number of loaded responders.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.responders)
}

// Infos lists the chain in consultation order.
func (c *Chain) Infos() []Info {
	if c == nil {
		return nil
	}
	out := make([]Info, len(c.responders))
	for i, r := range c.responders {
		out[i] = r.Info()
	}
	return out
}

// Converse walks the chain. Failures and empty replies move on to the next
// responder; ok is false when nobody answered.
func (c *Chain) Converse(ctx context.Context, text, from string) (reply string, ok bool) {
	return c.converse(ctx, text, from, false)
}

// ConverseCanned walks only the canned responders.
func (c *Chain) ConverseCanned(ctx context.Context, text, from string) (reply string, ok bool) {
	return c.converse(ctx, text, from, true)
}

func (c *Chain) converse(ctx context.Context, text, from string, cannedOnly bool) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, r := range c.responders {
		info := r.Info()
		if cannedOnly && !info.Canned {
			continue
		}
		name := info.Name
		out, err := safeConverse(ctx, r, text, from)
		if err != nil {
			slog.Warn("Responder converse failed", "responder", name, "from", from, "error", err)
			continue
		}
		if out == "" {
			slog.Debug("Responder had no reply", "responder", name)
			continue
		}
		return out, true
	}
	return "", false
}

func safeConverse(ctx context.Context, r Responder, text, from string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Converse(ctx, text, from)
}

// Stop stops every responder, logging failures.
func (c *Chain) Stop() {
	if c == nil {
		return
	}
	for _, r := range c.responders {
		if err := r.Stop(); err != nil {
			slog.Warn("Responder stop failed", "responder", r.Info().Name, "error", err)
		}
	}
}

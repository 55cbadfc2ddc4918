package responder

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/usherbot/usherbot/internal/textutil"
)

// SmallTalk answers from the configured small-talk table, keyed by single
// lowercase words.
type SmallTalk struct {
	table map[string]string
}

func (s *SmallTalk) Info() Info { return Info{Name: "Small Talk", IntelligenceLevel: 10, Canned: true} }

func (s *SmallTalk) Init(ic InitContext) error {
	s.table = make(map[string]string, len(ic.Chat.SmallTalkSequences))
	for k, v := range ic.Chat.SmallTalkSequences {
		s.table[strings.ToLower(k)] = v
	}
	return nil
}

func (s *SmallTalk) Start(context.Context) error { return nil }
func (s *SmallTalk) Stop() error                 { return nil }

// Converse returns the entry for the first word of text found in the table.
func (s *SmallTalk) Converse(_ context.Context, text, _ string) (string, error) {
	for _, w := range textutil.Words(text) {
		if reply, ok := s.table[strings.ToLower(w)]; ok {
			return reply, nil
		}
	}
	return "", nil
}

// Random answers with a random line from the configured list. It is the
// responder of last resort.
type Random struct {
	mu    sync.Mutex
	lines []string
	rng   *rand.Rand
}

func (r *Random) Info() Info { return Info{Name: "Random Talk", IntelligenceLevel: 0, Canned: true} }

func (r *Random) Init(ic InitContext) error {
	r.lines = append([]string(nil), ic.Chat.RandomTalk...)
	r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return nil
}

func (r *Random) Start(context.Context) error { return nil }
func (r *Random) Stop() error                 { return nil }

func (r *Random) Converse(context.Context, string, string) (string, error) {
	if len(r.lines) == 0 {
		return "", nil
	}
	r.mu.Lock()
	i := r.rng.IntN(len(r.lines))
	r.mu.Unlock()
	return r.lines[i], nil
}

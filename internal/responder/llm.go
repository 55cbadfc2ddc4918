package responder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/usherbot/usherbot/internal/provider"
)

// historyTurns bounds the per-sender conversation kept for context.
const historyTurns = 6

// LLM answers through an OpenAI-compatible chat completion endpoint.
type LLM struct {
	// Provider may be set before Init to bypass the configured endpoint.
	Provider provider.LLMProvider

	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string

	mu      sync.Mutex
	history map[string][]provider.Message
}

func (l *LLM) Info() Info { return Info{Name: "Language Model", IntelligenceLevel: 100} }

func (l *LLM) Init(ic InitContext) error {
	pc := ic.Provider
	if model := ic.Params["model"]; model != "" {
		pc.Model = model
	}
	if l.Provider == nil {
		client, err := provider.NewOpenAI(pc)
		if err != nil {
			return err
		}
		l.Provider = client
	}
	l.model = pc.Model
	if l.model == "" {
		l.model = l.Provider.DefaultModel()
	}
	l.maxTokens = pc.MaxTokens
	l.temperature = pc.Temperature
	l.systemPrompt = pc.SystemPrompt
	if ic.BotName != "" {
		l.systemPrompt = strings.TrimSpace(fmt.Sprintf("Your name is %s. %s", ic.BotName, l.systemPrompt))
	}
	l.history = map[string][]provider.Message{}
	return nil
}

func (l *LLM) Start(context.Context) error { return nil }

func (l *LLM) Stop() error {
	l.mu.Lock()
	l.history = map[string][]provider.Message{}
	l.mu.Unlock()
	return nil
}

func (l *LLM) Converse(ctx context.Context, text, from string) (string, error) {
	l.mu.Lock()
	prior := append([]provider.Message(nil), l.history[from]...)
	l.mu.Unlock()

	msgs := make([]provider.Message, 0, len(prior)+2)
	if l.systemPrompt != "" {
		msgs = append(msgs, provider.Message{Role: "system", Content: l.systemPrompt})
	}
	msgs = append(msgs, prior...)
	user := provider.Message{Role: "user", Content: text}
	msgs = append(msgs, user)

	resp, err := l.Provider.Chat(ctx, &provider.ChatRequest{
		Messages:    msgs,
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
		User:        from,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp.Content == "" {
		return "", nil
	}

	l.mu.Lock()
	h := append(l.history[from], user, provider.Message{Role: "assistant", Content: resp.Content})
	if len(h) > historyTurns*2 {
		h = h[len(h)-historyTurns*2:]
	}
	l.history[from] = h
	l.mu.Unlock()
	return resp.Content, nil
}

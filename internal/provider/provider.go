// Package provider implements the chat-completion client used by the
// conversational responders.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoAPIKey is returned when the endpoint has no credentials configured.
var ErrNoAPIKey = errors.New("no API key configured")

// LLMProvider answers chat completion requests.
type LLMProvider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	DefaultModel() string
}

// ChatRequest is one completion call. User carries the meeting participant
// the bot is talking to.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	User        string
}

type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Message is one turn of a conversation. Role is system, user or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is a non-2xx answer from the endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

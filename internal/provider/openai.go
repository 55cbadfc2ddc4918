package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/usherbot/usherbot/internal/config"
)

const (
	defaultAPIBase = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	// maxErrorBody caps how much of a failed response ends up in logs.
	maxErrorBody = 512
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, local gateways).
type OpenAI struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
	// retryDelay is the pause before the single retry of a retryable failure.
	retryDelay time.Duration
}

// NewOpenAI builds a client from the provider settings.
func NewOpenAI(pc config.ProviderConfig) (*OpenAI, error) {
	if strings.TrimSpace(pc.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	base := strings.TrimSuffix(pc.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	model := pc.Model
	if model == "" {
		model = defaultModel
	}
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAI{
		apiKey:     pc.APIKey,
		apiBase:    base,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		retryDelay: time.Second,
	}, nil
}

func (p *OpenAI) DefaultModel() string { return p.model }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	User        string    `json:"user,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Chat sends one completion request. Rate limits and server errors are
// retried once.
func (p *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := completionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.User,
	}
	if body.Model == "" {
		body.Model = p.model
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.post(ctx, payload)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Retryable() {
		slog.Debug("Chat completion retrying", "status", apiErr.Status)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.retryDelay):
		}
		resp, err = p.post(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}
	choice := resp.Choices[0]
	return &ChatResponse{
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

func (p *OpenAI) post(ctx context.Context, payload []byte) (*completionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

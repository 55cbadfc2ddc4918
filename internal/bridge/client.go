// Package bridge connects the bot to the external process that drives the
// meeting client. Actions go out as JSON POSTs; platform events come back
// on a small HTTP server.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/usherbot/usherbot/internal/meeting"
)

// ErrRejected is returned when the driver declines an action, e.g. because
// the participant is gone or the bot lacks the privilege.
var ErrRejected = errors.New("action rejected by driver")

// Client implements meeting.Controller and meeting.Speaker over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the driver at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// actionRequest is the body of every action call. Unused fields are omitted.
type actionRequest struct {
	ParticipantID string `json:"participantId,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role,omitempty"`
	NewName       string `json:"newName,omitempty"`
	To            string `json:"to,omitempty"`
	Text          string `json:"text,omitempty"`
	Sound         string `json:"sound,omitempty"`
	EndForAll     bool   `json:"endForAll,omitempty"`
}

func target(p meeting.Participant) actionRequest {
	return actionRequest{ParticipantID: p.ID, Name: p.Name}
}

func (c *Client) Admit(ctx context.Context, p meeting.Participant) error {
	return c.do(ctx, "admit", target(p))
}

func (c *Client) Promote(ctx context.Context, p meeting.Participant, role meeting.Role) error {
	req := target(p)
	req.Role = string(role)
	return c.do(ctx, "promote", req)
}

func (c *Client) Demote(ctx context.Context, p meeting.Participant) error {
	return c.do(ctx, "demote", target(p))
}

func (c *Client) Mute(ctx context.Context, p meeting.Participant) error {
	return c.do(ctx, "mute", target(p))
}

func (c *Client) Unmute(ctx context.Context, p meeting.Participant) error {
	return c.do(ctx, "unmute", target(p))
}

func (c *Client) Rename(ctx context.Context, p meeting.Participant, newName string) error {
	req := target(p)
	req.NewName = newName
	return c.do(ctx, "rename", req)
}

func (c *Client) Send(ctx context.Context, to meeting.Recipient, text string) error {
	return c.do(ctx, "send", actionRequest{To: string(to), Text: text})
}

func (c *Client) Leave(ctx context.Context, endForAll bool) error {
	return c.do(ctx, "leave", actionRequest{EndForAll: endForAll})
}

func (c *Client) ReclaimHost(ctx context.Context) error {
	return c.do(ctx, "reclaim-host", actionRequest{})
}

func (c *Client) Speak(ctx context.Context, text string) error {
	return c.do(ctx, "speak", actionRequest{Text: text})
}

func (c *Client) Play(ctx context.Context, sound string) error {
	return c.do(ctx, "play", actionRequest{Sound: sound})
}

func (c *Client) do(ctx context.Context, action string, body actionRequest) error {
	endpoint, err := c.endpoint("/actions/" + action)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", action, err)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bridge %s: marshal: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("bridge %s: create request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge %s: request failed: %w", action, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(msg))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("Bridge action done", "action", action, "participant", body.Name)
		return nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("bridge %s: %w: %s", action, ErrRejected, detail)
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("bridge %s: %w", action, meeting.ErrClosed)
	default:
		return fmt.Errorf("bridge %s: status %d: %s", action, resp.StatusCode, detail)
	}
}

func (c *Client) endpoint(path string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid driver URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/") + path, nil
}

var (
	_ meeting.Controller = (*Client)(nil)
	_ meeting.Speaker    = (*Client)(nil)
)

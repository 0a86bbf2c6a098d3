// Package client talks to a running troubleshoot server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/troubleshoot/pkg/llm"
	"github.com/papercomputeco/troubleshoot/pkg/relay"
)

// Client posts conversations to a server's /api/chat endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL (e.g., "http://localhost:5000").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// The server bounds its upstream call; allow for that plus overhead.
			Timeout: relay.DefaultTimeout + 10*time.Second,
		},
	}
}

// Chat sends turns and returns the reply. A {"success": false} response is
// returned as an error carrying the server's message.
func (c *Client) Chat(ctx context.Context, turns []llm.Message) (string, error) {
	body, err := json.Marshal(llm.ChatRequest{Messages: turns})
	if err != nil {
		return "", fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if !result.Success {
		if result.Error == "" {
			return "", fmt.Errorf("server returned %d without an error message", resp.StatusCode)
		}
		return "", errors.New(result.Error)
	}

	return result.Message, nil
}

// Session is a caller-side conversation. It echoes every prior turn on each
// call, which is what lets the server stay stateless. Not safe for
// concurrent use.
type Session struct {
	client *Client
	turns  []llm.Message
}

// NewSession starts an empty conversation.
func NewSession(c *Client) *Session {
	return &Session{client: c}
}

// Send adds a user turn, sends the whole conversation and records the reply.
// On failure the user turn is dropped, so the first successful call of a
// conversation still carries exactly one turn.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	turns := append(s.Turns(), llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := s.client.Chat(ctx, turns)
	if err != nil {
		return "", err
	}

	s.turns = append(turns, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []llm.Message {
	return append([]llm.Message(nil), s.turns...)
}

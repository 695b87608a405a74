// Package draft produces a suggested reply for inbound contact messages.
//
// When an AI endpoint is configured it asks an OpenAI-compatible chat
// completion API to draft the reply; on any failure (not configured,
// non-2xx, network error, timeout, empty completion) it falls back to a
// static template. Drafting is strictly best effort and never fails the
// contact submission.
package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cyberbrosec/cyberbro-web/internal/log"
)

// Request is the sanitized contact submission the draft is based on.
type Request struct {
	Name        string
	Email       string
	Institution string
	Message     string
}

// Drafter returns a suggested reply for a submission. The second return
// reports whether the draft came from the AI endpoint (false = fallback).
type Drafter interface {
	Draft(ctx context.Context, req Request) (string, bool)
}

// Options configures the AI-backed drafter.
type Options struct {
	Endpoint string // chat completions URL; empty disables the AI call
	APIKey   string
	Model    string
	Timeout  time.Duration // per-call budget, default 10s
}

// Client calls the configured completion endpoint with a fallback template.
type Client struct {
	opts Options
	http *http.Client
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You draft short, friendly replies for a cybersecurity " +
	"training company's contact inbox. Thank the sender, acknowledge their " +
	"message, and say a team member will follow up. Do not promise pricing " +
	"or dates. Keep it under 120 words."

func (c *Client) Draft(ctx context.Context, req Request) (string, bool) {
	L := log.FromContext(ctx)

	if c.opts.Endpoint == "" || c.opts.APIKey == "" {
		return Fallback(req.Name), false
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		L.Warn(ctx, "reply draft failed, using fallback", "error", err)
		return Fallback(req.Name), false
	}
	return text, true
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	user := fmt.Sprintf("From: %s <%s>\nInstitution: %s\n\n%s",
		req.Name, req.Email, orDash(req.Institution), req.Message)

	payload, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain a little for connection reuse, body content is not logged
		io.CopyN(io.Discard, resp.Body, 4096)
		return "", fmt.Errorf("draft endpoint status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("draft endpoint returned no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("draft endpoint returned empty draft")
	}
	return text, nil
}

// Fallback is the static template used when no AI draft is available.
func Fallback(name string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nThanks for reaching out to CyberBro Security. "+
			"We've received your message and a member of our team will get "+
			"back to you within one business day.\n\nBest regards,\n"+
			"The CyberBro Security Team", name)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Package narrative talks to the text-generation backend that produces
// interview questions and summary documents. The backend is treated as an
// opaque, non-deterministic collaborator behind an OpenAI-compatible chat
// API; all deterministic control logic lives in the interview package.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/venturekit/interviewd/internal/storage"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 2
	defaultBurst   = 4
)

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RPS and Burst bound this process's request rate against the backend.
	RPS   float64
	Burst int
}

// Client communicates with the generation backend over HTTP. A process-wide
// token bucket throttles upstream calls; the engine never retries, so a
// saturated bucket simply delays the single attempt until ctx expires.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client from cfg, applying defaults for zero values.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

// message is a chat message in the backend's API format.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body for POST /chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

// chatResponse is the JSON returned by POST /chat/completions.
type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NextQuestion asks the backend for the next interviewer question given the
// transcript so far and the mode-specific instructions.
func (c *Client) NextQuestion(ctx context.Context, transcript []storage.Turn, instructions string) (string, error) {
	messages := []message{{Role: "system", Content: instructions}}
	messages = append(messages, mapTurns(transcript)...)
	if len(transcript) == 0 {
		messages = append(messages, message{Role: "user", Content: "Begin the interview."})
	}

	text, err := c.chat(ctx, messages, 0.7)
	if err != nil {
		return "", fmt.Errorf("generating question: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Summarize asks the backend to distill the full transcript into the fixed
// summary JSON. The raw output is returned as-is; validation is the
// caller's job.
func (c *Client) Summarize(ctx context.Context, transcript []storage.Turn) (string, error) {
	messages := []message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: renderTranscript(transcript)},
	}

	text, err := c.chat(ctx, messages, 0)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	return text, nil
}

func (c *Client) chat(ctx context.Context, messages []message, temperature float32) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d: %s", resp.StatusCode, truncate(raw))
	}

	var result chatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("backend error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

// mapTurns converts transcript turns into chat roles: the interviewer speaks
// as the assistant, the interviewee as the user.
func mapTurns(transcript []storage.Turn) []message {
	out := make([]message, 0, len(transcript))
	for _, t := range transcript {
		role := "user"
		switch t.Role {
		case storage.RoleInterviewer:
			role = "assistant"
		case storage.RoleSystem:
			role = "system"
		}
		out = append(out, message{Role: role, Content: t.Content})
	}
	return out
}

func renderTranscript(transcript []storage.Turn) string {
	var sb strings.Builder
	for _, t := range transcript {
		fmt.Fprintf(&sb, "[%s]: %s\n", t.Role, t.Content)
	}
	return sb.String()
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

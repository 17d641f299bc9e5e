// Package ai proxies chat completions to an OpenAI-compatible or
// Gemini endpoint on behalf of authenticated users.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultSystemPrompt = "You are a helpful assistant in a chat application. Keep responses concise and friendly."
	fallbackReply       = "Sorry, I could not generate a response."

	// Only the most recent turns are forwarded as context.
	historyLimit = 10
	maxTokens    = 150
	temperature  = 0.7
)

var (
	ErrNotConfigured = errors.New("ai: service not configured")
	ErrUnauthorized  = errors.New("ai: upstream rejected the api key")
	ErrRateLimited   = errors.New("ai: upstream rate limit exceeded")
	ErrUnavailable   = errors.New("ai: upstream unreachable")
)

// UpstreamError reports a non-auth, non-ratelimit failure status from
// the provider.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai: upstream returned %d: %s", e.Status, e.Detail)
}

// Turn is one prior exchange in the conversation, role "user",
// "assistant" or "system".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to one configured completion endpoint. The provider
// dialect is chosen from the URL: Gemini endpoints get the Gemini wire
// format, everything else is treated as OpenAI-compatible.
type Client struct {
	apiURL string
	apiKey string
	model  string
	http   *http.Client
}

func NewClient(apiURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an API key is present. The placeholder
// value from sample env files counts as unconfigured.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiKey != "your-ai-api-key-here"
}

// Complete sends the message plus recent history upstream and returns
// the assistant's reply.
func (c *Client) Complete(ctx context.Context, message string, history []Turn) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var (
		body    []byte
		headers map[string]string
		err     error
	)
	if c.isGemini() {
		body, err = c.geminiRequest(message, history)
		headers = map[string]string{"X-goog-api-key": c.apiKey}
	} else {
		body, err = c.openAIRequest(message, history)
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}
	if err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &UpstreamError{Status: resp.StatusCode, Detail: upstreamDetail(raw)}
	}

	if c.isGemini() {
		return parseGeminiReply(raw)
	}
	return parseOpenAIReply(raw)
}

func (c *Client) isGemini() bool {
	return strings.Contains(c.apiURL, "generativelanguage.googleapis.com")
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) openAIRequest(message string, history []Turn) ([]byte, error) {
	messages := []openAIMessage{{Role: "system", Content: defaultSystemPrompt}}
	for _, t := range recent(history) {
		messages = append(messages, openAIMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: message})

	return json.Marshal(map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	})
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

func (c *Client) geminiRequest(message string, history []Turn) ([]byte, error) {
	system := defaultSystemPrompt
	for _, t := range history {
		if t.Role == "system" {
			system = t.Content
			break
		}
	}

	var contents []geminiContent
	for _, t := range recent(history) {
		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Content}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: message}}})

	return json.Marshal(map[string]interface{}{
		"contents":          contents,
		"systemInstruction": geminiContent{Parts: []geminiPart{{Text: system}}},
	})
}

// recent drops system turns and keeps the last historyLimit entries.
func recent(history []Turn) []Turn {
	filtered := make([]Turn, 0, len(history))
	for _, t := range history {
		if t.Role == "system" {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) > historyLimit {
		filtered = filtered[len(filtered)-historyLimit:]
	}
	return filtered
}

func parseOpenAIReply(raw []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return fallbackReply, nil
	}
	return parsed.Choices[0].Message.Content, nil
}

func parseGeminiReply(raw []byte) (string, error) {
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []geminiPart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 ||
		parsed.Candidates[0].Content.Parts[0].Text == "" {
		return fallbackReply, nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func upstreamDetail(raw []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return "unknown error"
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestCompleteOpenAIFormat(t *testing.T) {
	var got struct {
		Model    string          `json:"model"`
		Messages []openAIMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "gpt-3.5-turbo", time.Second)
	history := []Turn{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "reply"},
	}
	reply, err := client.Complete(context.Background(), "hello", history)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "hi there" {
		t.Errorf("reply = %q", reply)
	}

	if got.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", got.Model)
	}
	want := []openAIMessage{
		{Role: "system", Content: defaultSystemPrompt},
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "hello"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages = %+v", got.Messages)
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, got.Messages[i], want[i])
		}
	}
}

func TestCompleteTrimsHistory(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []openAIMessage `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		count = len(body.Messages)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	history := make([]Turn, 0, 25)
	for i := 0; i < 25; i++ {
		history = append(history, Turn{Role: "user", Content: "old"})
	}
	// System turns in the history never reach the upstream message list.
	history = append(history, Turn{Role: "system", Content: "custom prompt"})

	client := NewClient(srv.URL, "test-key", "gpt-3.5-turbo", time.Second)
	if _, err := client.Complete(context.Background(), "now", history); err != nil {
		t.Fatal(err)
	}
	// system prompt + 10 history turns + current message
	if count != 12 {
		t.Errorf("forwarded %d messages, want 12", count)
	}
}

func TestCompleteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad key", http.StatusUnauthorized, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "test-key", "m", time.Second)
			_, err := client.Complete(context.Background(), "hello", nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"model overloaded"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "m", time.Second)
	_, err := client.Complete(context.Background(), "hello", nil)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upstream.Status != http.StatusInternalServerError || upstream.Detail != "model overloaded" {
		t.Errorf("upstream = %+v", upstream)
	}
}

func TestCompleteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "test-key", "m", time.Second)
	_, err := client.Complete(context.Background(), "hello", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	for _, key := range []string{"", "your-ai-api-key-here"} {
		client := NewClient("http://example.invalid", key, "m", time.Second)
		if client.Configured() {
			t.Errorf("Configured() with key %q", key)
		}
		if _, err := client.Complete(context.Background(), "hello", nil); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("err = %v, want ErrNotConfigured", err)
		}
	}
}

func TestCompleteEmptyChoicesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "m", time.Second)
	reply, err := client.Complete(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != fallbackReply {
		t.Errorf("reply = %q", reply)
	}
}

func TestGeminiRequestShape(t *testing.T) {
	client := NewClient("https://generativelanguage.googleapis.com/v1beta/models/gemini:generateContent", "k", "", time.Second)
	if !client.isGemini() {
		t.Fatal("url not recognized as gemini")
	}

	history := []Turn{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
	}
	raw, err := client.geminiRequest("q2", history)
	if err != nil {
		t.Fatal(err)
	}

	var body struct {
		Contents          []geminiContent `json:"contents"`
		SystemInstruction geminiContent   `json:"systemInstruction"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}
	if body.SystemInstruction.Parts[0].Text != "be terse" {
		t.Errorf("system instruction = %+v", body.SystemInstruction)
	}
	wantRoles := []string{"user", "model", "user"}
	if len(body.Contents) != len(wantRoles) {
		t.Fatalf("contents = %+v", body.Contents)
	}
	for i, role := range wantRoles {
		if body.Contents[i].Role != role {
			t.Errorf("contents[%d].role = %q, want %q", i, body.Contents[i].Role, role)
		}
	}
	if body.Contents[2].Parts[0].Text != "q2" {
		t.Errorf("last content = %+v", body.Contents[2])
	}
}

func TestParseGeminiReply(t *testing.T) {
	reply, err := parseGeminiReply([]byte(`{"candidates":[{"content":{"parts":[{"text":"from gemini"}]}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "from gemini" {
		t.Errorf("reply = %q", reply)
	}

	reply, err = parseGeminiReply([]byte(`{"candidates":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if reply != fallbackReply {
		t.Errorf("reply = %q", reply)
	}
}

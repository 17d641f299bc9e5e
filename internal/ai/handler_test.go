package ai

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestChatValidation(t *testing.T) {
	handler := NewHandler(NewClient("http://example.invalid", "test-key", "m", time.Second))

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing message", http.MethodPost, `{}`, http.StatusBadRequest},
		{"blank message", http.MethodPost, `{"message":"   "}`, http.StatusBadRequest},
		{"oversized message", http.MethodPost, fmt.Sprintf(`{"message":%q}`, strings.Repeat("x", 1001)), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/ai/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.Chat(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestChatNotConfigured(t *testing.T) {
	handler := NewHandler(NewClient("http://example.invalid", "", "m", time.Second))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	handler.Chat(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Configured == nil || *resp.Configured {
		t.Errorf("configured flag = %+v, want false", resp.Configured)
	}
}

func TestChatSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"the answer"}}]}`)
	}))
	defer upstream.Close()

	handler := NewHandler(NewClient(upstream.URL, "test-key", "m", time.Second))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"message":"question"}`))
	rec := httptest.NewRecorder()
	handler.Chat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "the answer" {
		t.Errorf("message = %q", resp.Message)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", resp.Timestamp, err)
	}
}

package ai

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/varun72004/Twin-Talk/internal/auth"
)

const maxPromptLength = 1000

// Handler exposes the assistant over HTTP. It expects to run behind
// the auth middleware.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

type chatRequest struct {
	Message string `json:"message"`
	History []Turn `json:"conversationHistory"`
}

type chatResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Configured *bool  `json:"configured,omitempty"`
}

// Chat handles POST /api/ai/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Message is required"})
		return
	}
	if len(req.Message) > maxPromptLength {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Message too long (max 1000 characters)"})
		return
	}

	reply, err := h.client.Complete(r.Context(), req.Message, req.History)
	if err != nil {
		h.writeCompletionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Message:   reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeCompletionError(w http.ResponseWriter, r *http.Request, err error) {
	userID := ""
	if claims, ok := auth.ClaimsFrom(r.Context()); ok {
		userID = claims.UserID
	}
	slog.Error("ai completion failed", "user", userID, "error", err)

	configured := h.client.Configured()
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, errorResponse{
			Error:      "AI service not configured",
			Message:    "Set AI_API_KEY to enable the assistant.",
			Configured: &configured,
		})
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, errorResponse{
			Error:      "AI service error",
			Message:    "Invalid API key. Please check your AI_API_KEY configuration.",
			Configured: &configured,
		})
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, errorResponse{
			Error:      "AI service error",
			Message:    "Rate limit exceeded. Please try again later.",
			Configured: &configured,
		})
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, errorResponse{
			Error:      "AI service unavailable",
			Message:    "Unable to connect to the AI service.",
			Configured: &configured,
		})
	case errors.As(err, &upstream):
		writeError(w, upstream.Status, errorResponse{
			Error:      "AI service error",
			Message:    upstream.Detail,
			Configured: &configured,
		})
	default:
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:      "Failed to get AI response",
			Message:    "An unexpected error occurred. Please try again later.",
			Configured: &configured,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

package stylist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/stylevault/backend/internal/errors"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
}

func TestCompleteReturnsAssistantReply(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(completionResponse("wear the linen blazer"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "gpt-4")
	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "you are a stylist"},
		{Role: RoleUser, Content: "what should I wear?"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "wear the linen blazer" {
		t.Errorf("reply = %q", reply)
	}
	if gotReq.Model != "gpt-4" {
		t.Errorf("model = %q, want gpt-4", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(gotReq.Messages))
	}
}

func TestCompleteTruncatesOnContextLength(t *testing.T) {
	var calls int
	var secondCallMessages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"message": "this model's maximum context length is exceeded",
					"code":    "context_length_exceeded",
				},
			})
			return
		}
		secondCallMessages = len(req.Messages)
		json.NewEncoder(w).Encode(completionResponse("short answer"))
	}))
	defer server.Close()

	messages := []Message{{Role: RoleSystem, Content: "you are a stylist"}}
	for i := 0; i < 20; i++ {
		messages = append(messages, Message{Role: RoleUser, Content: "message"})
	}

	client := NewClient(server.URL, "test-key", "gpt-4")
	reply, err := client.Complete(context.Background(), messages)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "short answer" {
		t.Errorf("reply = %q", reply)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	// System prompt plus the trailing window.
	if secondCallMessages != keepRecentMessages+1 {
		t.Errorf("second call messages = %d, want %d", secondCallMessages, keepRecentMessages+1)
	}
}

func TestCompleteDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "code": "invalid_api_key"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key", "gpt-4")
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("Complete() should fail on 401")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls)
	}

	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("error type = %T, want *AppError", err)
	}
	if appErr.Code != apperrors.CodeStylistError {
		t.Errorf("code = %q", appErr.Code)
	}
}

func TestTruncateHistory(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "1"},
		{Role: RoleAssistant, Content: "2"},
		{Role: RoleUser, Content: "3"},
		{Role: RoleAssistant, Content: "4"},
		{Role: RoleUser, Content: "5"},
		{Role: RoleAssistant, Content: "6"},
		{Role: RoleUser, Content: "7"},
	}

	truncated := truncateHistory(messages, 5)
	if len(truncated) != 6 {
		t.Fatalf("len = %d, want 6", len(truncated))
	}
	if truncated[0].Role != RoleSystem {
		t.Error("system prompt should survive truncation")
	}
	if truncated[1].Content != "3" || truncated[5].Content != "7" {
		t.Errorf("unexpected window: %+v", truncated)
	}

	// Short histories pass through untouched.
	short := []Message{{Role: RoleUser, Content: "hi"}}
	if got := truncateHistory(short, 5); len(got) != 1 {
		t.Errorf("short history len = %d, want 1", len(got))
	}
}

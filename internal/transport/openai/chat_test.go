package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
)

type chatMessageBody struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormatBody struct {
	Type string `json:"type"`
}

type chatRequestBody struct {
	Model          string              `json:"model"`
	Messages       []chatMessageBody   `json:"messages"`
	ResponseFormat *responseFormatBody `json:"response_format"`
}

func chatServer(t *testing.T, status int, content string, got *chatRequestBody) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "boom", "type": "server_error"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
	}))
}

func newTestChat(url string) *Chat {
	return NewChat(&Config{APIKey: "test-key", BaseURL: url, Model: "gpt-test", Logger: zap.NewNop()}, 0)
}

func TestChat_Complete(t *testing.T) {
	var body chatRequestBody
	server := chatServer(t, http.StatusOK, ` {"score": 0.8, "explanation": "on topic"} `, &body)
	defer server.Close()

	resp, err := newTestChat(server.URL).Complete(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "You rate papers."},
			{Role: domain.RoleUser, Content: "query"},
		},
		JSON: true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"score": 0.8, "explanation": "on topic"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 5 {
		t.Errorf("usage = %+v", resp)
	}
	if body.Model != "gpt-test" || len(body.Messages) != 2 || body.Messages[0].Role != "system" {
		t.Errorf("request body = %+v", body)
	}
	if body.ResponseFormat == nil || body.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", body.ResponseFormat)
	}
}

func TestChat_EmptyContent(t *testing.T) {
	server := chatServer(t, http.StatusOK, "   ", nil)
	defer server.Close()

	_, err := newTestChat(server.URL).Complete(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrProviderResponse) {
		t.Fatalf("expected ErrProviderResponse, got %v", err)
	}
}

func TestChat_ServerError(t *testing.T) {
	server := chatServer(t, http.StatusBadGateway, "", nil)
	defer server.Close()

	_, err := newTestChat(server.URL).Complete(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChat_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestChat(server.URL).Complete(ctx, domain.ChatRequest{})
	if !errors.Is(err, domain.ErrProviderTimeout) {
		t.Fatalf("expected ErrProviderTimeout, got %v", err)
	}
}

func TestChat_Name(t *testing.T) {
	if newTestChat("http://unused").Name() != "openai" {
		t.Error("unexpected name")
	}
}
